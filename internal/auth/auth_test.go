package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/storage"
)

func init() {
	logging.SetOutput(io.Discard)
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(storage.NewMemory())
	require.NoError(t, err)
	return svc
}

func TestTokens_CreateValidateRevoke(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	tok, raw, err := svc.CreateToken(ctx, "ci", RoleEditor, nil)
	require.NoError(t, err)
	assert.NotEqual(t, raw, tok.TokenHash)

	got, err := svc.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)

	_, err = svc.ValidateToken(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.RevokeToken(ctx, tok.ID))
	_, err = svc.ValidateToken(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Expired(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	past := time.Now().Add(-time.Minute)

	_, raw, err := svc.CreateToken(ctx, "old", RoleViewer, &past)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokens_UnknownRole(t *testing.T) {
	_, _, err := newService(t).CreateToken(context.Background(), "x", "root", nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestEnforce(t *testing.T) {
	svc := newService(t)
	tests := []struct {
		role, obj, act string
		want           bool
	}{
		{RoleAdmin, ObjTokens, ActWrite, true},
		{RoleEditor, ObjFeed, ActWrite, true},
		{RoleEditor, ObjTokens, ActWrite, false},
		{RoleViewer, ObjCurrencies, ActRead, true},
		{RoleViewer, ObjCurrencies, ActWrite, false},
		{"", ObjFeed, ActRead, false},
	}
	for _, tt := range tests {
		ok, err := svc.Enforce(tt.role, tt.obj, tt.act)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s %s %s", tt.role, tt.obj, tt.act)
	}
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, viewer, err := svc.CreateToken(ctx, "viewer", RoleViewer, nil)
	require.NoError(t, err)
	_, editor, err := svc.CreateToken(ctx, "editor", RoleEditor, nil)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := svc.Middleware(nil, svc.RequirePermission(ObjFeed, ActWrite, nil, ok))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"unknown", "Bearer nope", http.StatusUnauthorized},
		{"viewer", "Bearer " + viewer, http.StatusForbidden},
		{"editor", "Bearer " + editor, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	got, err := ParseExpiry("never", now)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseExpiry("30d", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), *got)

	got, err = ParseExpiry("2w", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(14*24*time.Hour), *got)

	got, err = ParseExpiry("90m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(90*time.Minute), *got)

	got, err = ParseExpiry("2026-02-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *got)

	_, err = ParseExpiry("2025-12-31", now)
	assert.Error(t, err)
	_, err = ParseExpiry("soon", now)
	assert.Error(t, err)
}
