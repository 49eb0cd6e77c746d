package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpimanager_requests_total",
			Help: "Total number of HTTP requests per route",
		},
		[]string{"route", "method"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bpimanager_request_duration_seconds",
			Help:    "Request duration in seconds per route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpimanager_request_errors_total",
			Help: "Total number of error responses per route and status code",
		},
		[]string{"route", "method", "code"},
	)
)

var (
	IngestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpimanager_ingestions_total",
			Help: "Feed ingestions by result (success, invalid, error)",
		},
		[]string{"result"},
	)

	IngestionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bpimanager_ingestion_duration_seconds",
			Help:    "Time spent persisting one feed",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeedReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpimanager_feed_reads_total",
			Help: "Feed reads by the tier that served them (cache, store, seed, error)",
		},
		[]string{"source"},
	)

	LastFeedCurrencies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bpimanager_currencies_in_last_feed",
			Help: "Number of currencies in the most recently ingested feed",
		},
	)
)

// RecordIngestion counts one ingestion outcome and its duration.
func RecordIngestion(result string, startedAt time.Time, currencies int) {
	IngestionsTotal.WithLabelValues(result).Inc()
	IngestionDurationSeconds.Observe(time.Since(startedAt).Seconds())
	if result == "success" {
		LastFeedCurrencies.Set(float64(currencies))
	}
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bpimanager_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bpimanager_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpimanager_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
