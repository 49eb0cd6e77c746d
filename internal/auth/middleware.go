package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bher20/bpimanager/internal/storage"
)

type contextKey string

const TokenContextKey contextKey = "token"

// ErrorWriter renders an authentication or authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func defaultErrorWriter(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnauthorized
	if errors.Is(err, ErrForbidden) {
		status = http.StatusForbidden
	}
	http.Error(w, err.Error(), status)
}

// TokenFromContext returns the token attached by Middleware, if any.
func TokenFromContext(ctx context.Context) (*storage.Token, bool) {
	t, ok := ctx.Value(TokenContextKey).(*storage.Token)
	return t, ok
}

// Middleware resolves a bearer token when one is sent. Requests without an
// Authorization header pass through anonymously.
func (s *Service) Middleware(onErr ErrorWriter, next http.Handler) http.Handler {
	if onErr == nil {
		onErr = defaultErrorWriter
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, value, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
			onErr(w, r, ErrInvalidToken)
			return
		}

		token, err := s.ValidateToken(r.Context(), value)
		if err != nil {
			onErr(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose token role may not perform act on
// obj.
func (s *Service) RequirePermission(obj, act string, onErr ErrorWriter, next http.Handler) http.Handler {
	if onErr == nil {
		onErr = defaultErrorWriter
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromContext(r.Context())
		if !ok {
			onErr(w, r, ErrUnauthorized)
			return
		}

		allowed, err := s.Enforce(token.Role, obj, act)
		if err != nil {
			onErr(w, r, err)
			return
		}
		if !allowed {
			onErr(w, r, ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
