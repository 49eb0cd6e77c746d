package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/bpimanager/internal/auth"
	"github.com/bher20/bpimanager/internal/migrate"
	"github.com/bher20/bpimanager/internal/rates"
	"github.com/bher20/bpimanager/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the SQL schema migrations",
	}

	run := func(name string, fn func(cmd *cobra.Command, gs *storage.GormStorage, driver string) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: name + " migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if cfg.DBDriver == "memory" {
					return fmt.Errorf("migrations need a sqlite or postgres driver")
				}
				gs, err := storage.NewGormStorage(cfg.DBDriver, cfg.DBDSN)
				if err != nil {
					return err
				}
				defer gs.Close()
				return fn(cmd, gs, cfg.DBDriver)
			},
		}
	}

	cmd.AddCommand(
		run("up", func(cmd *cobra.Command, gs *storage.GormStorage, driver string) error {
			db, err := gs.SQLDB()
			if err != nil {
				return err
			}
			return migrate.Up(cmd.Context(), db, driver)
		}),
		run("down", func(cmd *cobra.Command, gs *storage.GormStorage, driver string) error {
			db, err := gs.SQLDB()
			if err != nil {
				return err
			}
			return migrate.Down(cmd.Context(), db, driver)
		}),
		run("status", func(cmd *cobra.Command, gs *storage.GormStorage, driver string) error {
			db, err := gs.SQLDB()
			if err != nil {
				return err
			}
			if err := migrate.Status(cmd.Context(), db, driver); err != nil {
				return err
			}
			v, err := migrate.Version(cmd.Context(), db, driver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current version: %d\n", v)
			return nil
		}),
	)
	return cmd
}

func ingestCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store a wire-format feed read from a file (or - for stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var feed *rates.Feed
			if err := json.NewDecoder(r).Decode(&feed); err != nil {
				return fmt.Errorf("decode %s: %w", file, err)
			}

			st, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := rates.NewService(rates.Config{SeedPath: cfg.SeedPath, DefaultNames: cfg.DefaultNames}, st)
			snap, err := svc.Ingest(ctx, feed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored snapshot %d with %d currencies\n", snap.ID, len(snap.Rates))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "feed JSON file")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current feed to a file usable as a seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := rates.NewService(rates.Config{SeedPath: cfg.SeedPath, DefaultNames: cfg.DefaultNames}, st)
			src, err := svc.ExportFeed(ctx, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (from %s)\n", out, src)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "bpi.json", "output path")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	withAuth := func(cmd *cobra.Command, fn func(svc *auth.Service) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DBDriver == "memory" {
			return fmt.Errorf("tokens need a persistent db driver")
		}
		st, err := openStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		svc, err := auth.NewService(st)
		if err != nil {
			return err
		}
		return fn(svc)
	}

	var name, role, expires string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a token; the raw value is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := auth.ParseExpiry(expires, time.Now().UTC())
			if err != nil {
				return err
			}
			return withAuth(cmd, func(svc *auth.Service) error {
				t, raw, err := svc.CreateToken(cmd.Context(), name, role, exp)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id:    %s\nrole:  %s\ntoken: %s\n", t.ID, t.Role, raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "token name")
	create.Flags().StringVar(&role, "role", auth.RoleEditor, "admin, editor or viewer")
	create.Flags().StringVar(&expires, "expires", "never", "lifetime: never, 30d, 2w, 24h or a date (2006-01-02)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd, func(svc *auth.Service) error {
				tokens, err := svc.ListTokens(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tROLE\tEXPIRES\tLAST USED")
				for _, t := range tokens {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Role, fmtTime(t.ExpiresAt), fmtTime(t.LastUsedAt))
				}
				return tw.Flush()
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Delete a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd, func(svc *auth.Service) error {
				return svc.RevokeToken(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
