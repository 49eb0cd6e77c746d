package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bher20/bpimanager/internal/auth"
	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/rates"
	"github.com/bher20/bpimanager/internal/storage"
)

// Envelope wraps every JSON response of the /api routes. ReturnCode is 200
// on success and the HTTP status otherwise.
type Envelope struct {
	ReturnCode int    `json:"returnCode"`
	ReturnMsg  string `json:"returnMsg"`
	Data       any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.For("api").WithError(err).Warn("encode response failed")
	}
}

func writeOK(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, Envelope{ReturnCode: http.StatusOK, ReturnMsg: msg, Data: data})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rates.ErrInvalidFeed),
		errors.Is(err, rates.ErrInvalidCurrency),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, rates.ErrCurrencyNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rates.ErrCurrencyExists),
		errors.Is(err, rates.ErrCurrencyInUse),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, storage.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the envelope. Internal errors are logged and
// reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		requestLog(r).WithError(err).Error("request failed")
		msg = "internal server error"
	}
	writeJSON(w, status, Envelope{ReturnCode: status, ReturnMsg: msg})
}
