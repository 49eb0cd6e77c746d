package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/metrics"
)

var (
	errBadRequest  = errors.New("bad request")
	errRateLimited = errors.New("rate limit exceeded")
)

type ctxKey int

const requestLogKey ctxKey = iota

func requestLog(r *http.Request) *logrus.Entry {
	if e, ok := r.Context().Value(requestLogKey).(*logrus.Entry); ok {
		return e
	}
	return logging.For("api")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument tags the request with an id, logs it and records route metrics
// under pattern.
func instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		entry := logging.For("api").WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		r = r.WithContext(context.WithValue(r.Context(), requestLogKey, entry))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		dur := time.Since(start)
		metrics.RequestsTotal.WithLabelValues(pattern, r.Method).Inc()
		metrics.RequestDurationSeconds.WithLabelValues(pattern, r.Method).Observe(dur.Seconds())
		if rec.status >= 400 {
			metrics.RequestErrorsTotal.WithLabelValues(pattern, r.Method, strconv.Itoa(rec.status)).Inc()
		}
		entry.WithFields(logrus.Fields{
			"status":   rec.status,
			"duration": dur.String(),
		}).Info("request")
	})
}

// rateLimit rejects requests once the shared token bucket is empty. A nil
// limiter disables limiting.
func rateLimit(l *rate.Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, r, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
