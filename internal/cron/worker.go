package cron

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bher20/bpimanager/internal/alerting"
	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/metrics"
	"github.com/bher20/bpimanager/internal/rates"
	"github.com/bher20/bpimanager/internal/storage"
)

const (
	JobName = "refresh_feed"

	lockKey int64 = 0x6270_6966 // "bpif"
)

// ErrLocked is returned by RunOnce when another replica holds the job lock.
var ErrLocked = errors.New("refresh job locked by another worker")

// Ingester stores a feed. rates.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, f *rates.Feed) (*storage.Snapshot, error)
}

// Config for the refresh worker.
type Config struct {
	FeedURL  string
	Schedule string
	Timeout  time.Duration
}

// Worker periodically pulls the upstream feed and ingests it.
type Worker struct {
	cfg     Config
	ingest  Ingester
	jobs    storage.JobStore
	locker  storage.Locker
	alerter *alerting.Alerter
	client  *http.Client
	log     *logrus.Entry

	mu       sync.Mutex
	failures int
}

// NewWorker builds a worker. locker and alerter may be nil.
func NewWorker(cfg Config, ing Ingester, jobs storage.JobStore, locker storage.Locker, alerter *alerting.Alerter) *Worker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5m"
	}
	return &Worker{
		cfg:     cfg,
		ingest:  ing,
		jobs:    jobs,
		locker:  locker,
		alerter: alerter,
		client:  rates.NewHTTPClient(cfg.Timeout),
		log:     logging.For("cron").WithField("job", JobName),
	}
}

// Run executes the job once immediately and then on the configured schedule
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.cfg.Schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", w.cfg.Schedule, err)
	}

	w.log.WithField("schedule", w.cfg.Schedule).WithField("feed_url", w.cfg.FeedURL).Info("refresh worker starting")
	w.tick(ctx)
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	w.log.Info("refresh worker stopped")
	return ctx.Err()
}

func (w *Worker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrLocked) {
		w.log.WithError(err).Warn("refresh failed")
	}
}

// RunOnce fetches and ingests the feed a single time, records the run and
// alerts once enough consecutive runs have failed.
func (w *Worker) RunOnce(ctx context.Context) error {
	started := time.Now()
	log := w.log.WithField("run_id", uuid.NewString())

	if w.locker == nil {
		return w.run(ctx, log, started)
	}
	ran, err := w.locker.WithAdvisoryLock(ctx, lockKey, func(ctx context.Context) error {
		return w.run(ctx, log, started)
	})
	if !ran {
		if err != nil {
			metrics.UpdateJobMetrics(JobName, started, err)
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		log.Info("advisory lock held by another worker, skipping run")
		return ErrLocked
	}
	return err
}

func (w *Worker) run(ctx context.Context, log *logrus.Entry, started time.Time) error {
	runErr := w.refresh(ctx, log)
	dur := time.Since(started)

	metrics.UpdateJobMetrics(JobName, started, runErr)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if w.jobs != nil {
		if err := w.jobs.UpdateScheduledJob(context.WithoutCancel(ctx), JobName, started, dur, runErr == nil, errMsg); err != nil {
			log.WithError(err).Warn("update scheduled_jobs failed")
		}
	}

	w.mu.Lock()
	if runErr == nil {
		w.failures = 0
	} else {
		w.failures++
	}
	failures := w.failures
	w.mu.Unlock()

	if runErr != nil {
		w.alert(ctx, log, failures, runErr, dur)
		return runErr
	}
	log.WithField("duration", dur).Info("refresh completed")
	return nil
}

func (w *Worker) refresh(ctx context.Context, log *logrus.Entry) error {
	if w.cfg.FeedURL == "" {
		return errors.New("no feed URL configured")
	}
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	feed, err := rates.FetchFeed(fetchCtx, w.client, w.cfg.FeedURL)
	if err != nil {
		return err
	}
	snap, err := w.ingest.Ingest(ctx, feed)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	log.WithField("snapshot_id", snap.ID).Debug("feed stored")
	return nil
}

func (w *Worker) alert(ctx context.Context, log *logrus.Entry, failures int, runErr error, dur time.Duration) {
	if !w.alerter.Enabled() {
		return
	}
	_, err := w.alerter.SendRefreshAlert(ctx, alerting.RefreshAlert{
		JobName:             JobName,
		FeedURL:             w.cfg.FeedURL,
		ConsecutiveFailures: failures,
		LastError:           runErr.Error(),
		Duration:            dur,
		Timestamp:           time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Warn("send alert failed")
	}
}

// ConsecutiveFailures returns the number of failed runs since the last
// success.
func (w *Worker) ConsecutiveFailures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}
