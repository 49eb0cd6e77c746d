package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bher20/bpimanager/internal/alerting"
	"github.com/bher20/bpimanager/internal/api"
	"github.com/bher20/bpimanager/internal/auth"
	"github.com/bher20/bpimanager/internal/config"
	"github.com/bher20/bpimanager/internal/cron"
	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/rates"
	"github.com/bher20/bpimanager/internal/storage"
)

var configPath string

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "bpimanager",
		Short:         "Bitcoin price index ingestion and localized views",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BPI_CONFIG"), "path to a YAML config file")

	root.AddCommand(serveCmd(), migrateCmd(), ingestCmd(), exportCmd(), tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logging.For("main").WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	return storage.Open(ctx, storage.Config{
		Driver:     cfg.DBDriver,
		DSN:        cfg.DBDSN,
		Migrations: cfg.Migrations,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when a feed URL is configured, the refresh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.For("main")

			st, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := rates.NewService(rates.Config{SeedPath: cfg.SeedPath, DefaultNames: cfg.DefaultNames}, st)

			deps := api.Deps{
				Rates:          svc,
				Store:          st,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateLimitBurst: cfg.RateLimitBurst,
			}
			if cfg.AuthEnabled {
				authSvc, err := auth.NewService(st)
				if err != nil {
					return err
				}
				deps.Auth = authSvc
			}

			workerDone := make(chan struct{})
			if cfg.FeedURL != "" {
				locker, _ := st.(storage.Locker)
				alerter := alerting.NewAlerter(alerting.AlertConfig{
					WebhookURL:             cfg.AlertWebhookURL,
					WebhookType:            cfg.AlertWebhookType,
					MinFailuresBeforeAlert: cfg.AlertMinFailures,
				})
				w := cron.NewWorker(cron.Config{
					FeedURL:  cfg.FeedURL,
					Schedule: cfg.RefreshSchedule,
					Timeout:  cfg.FeedTimeout,
				}, svc, st, locker, alerter)
				go func() {
					defer close(workerDone)
					if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.WithError(err).Error("refresh worker exited")
					}
				}()
			} else {
				close(workerDone)
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           api.NewMux(deps),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", srv.Addr).WithField("driver", cfg.DBDriver).Info("bpimanager listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.WithError(err).Warn("graceful shutdown failed")
				}
			}
			<-workerDone
			return nil
		},
	}
}
