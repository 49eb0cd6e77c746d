package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/bher20/bpimanager/internal/api/swagger"
	"github.com/bher20/bpimanager/internal/auth"
	"github.com/bher20/bpimanager/internal/rates"
	"github.com/bher20/bpimanager/internal/storage"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Rates *rates.Service
	Store storage.Storage
	// Auth protects write routes when set.
	Auth *auth.Service

	// RateLimitRPS <= 0 disables rate limiting of /api routes.
	RateLimitRPS   float64
	RateLimitBurst int
}

type handler struct {
	svc *rates.Service
}

// NewMux constructs the HTTP mux, wiring in the rates service, metrics, docs
// and health endpoints.
func NewMux(d Deps) *http.ServeMux {
	h := &handler{svc: d.Rates}

	var limiter *rate.Limiter
	if d.RateLimitRPS > 0 {
		burst := d.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(d.RateLimitRPS), burst)
	}

	mux := http.NewServeMux()

	route := func(pattern string, fn http.HandlerFunc, obj, act string) {
		var next http.Handler = fn
		if d.Auth != nil {
			if act == auth.ActWrite {
				next = d.Auth.RequirePermission(obj, act, writeError, next)
			}
			next = d.Auth.Middleware(writeError, next)
		}
		mux.Handle(pattern, instrument(pattern, rateLimit(limiter, next)))
	}

	route("POST /api/coindesk/input", h.input, auth.ObjFeed, auth.ActWrite)
	route("GET /api/coindesk/transform", h.transform, auth.ObjFeed, auth.ActRead)
	route("GET /api/coindesk/original", h.original, auth.ObjFeed, auth.ActRead)

	route("GET /api/currencies", h.listCurrencies, auth.ObjCurrencies, auth.ActRead)
	route("GET /api/currencies/{code}", h.getCurrency, auth.ObjCurrencies, auth.ActRead)
	route("POST /api/currencies", h.createCurrency, auth.ObjCurrencies, auth.ActWrite)
	route("PUT /api/currencies/{code}", h.updateCurrency, auth.ObjCurrencies, auth.ActWrite)
	route("DELETE /api/currencies/{code}", h.deleteCurrency, auth.ObjCurrencies, auth.ActWrite)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/docs/", http.StripPrefix("/docs", swagger.Handler()))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.Ping(r.Context()); err != nil {
			requestLog(r).WithError(err).Warn("readyz: store ping failed")
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusFound)
	})

	return mux
}
