package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/storage"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownRole  = errors.New("unknown role")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("permission denied")
)

// Roles understood by the policy.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Objects and actions checked by RequirePermission.
const (
	ObjFeed       = "feed"
	ObjCurrencies = "currencies"
	ObjTokens     = "tokens"

	ActRead  = "read"
	ActWrite = "write"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

type Service struct {
	tokens   storage.TokenStore
	enforcer *casbin.Enforcer
}

func NewService(tokens storage.TokenStore) (*Service, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	policies := [][]string{
		{RoleAdmin, "*", "*"},
		{RoleEditor, ObjFeed, ActRead},
		{RoleEditor, ObjFeed, ActWrite},
		{RoleEditor, ObjCurrencies, ActRead},
		{RoleEditor, ObjCurrencies, ActWrite},
		{RoleViewer, ObjFeed, ActRead},
		{RoleViewer, ObjCurrencies, ActRead},
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}

	return &Service{tokens: tokens, enforcer: e}, nil
}

func validRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateToken issues a new token for role. The raw token is returned once;
// only its hash is stored.
func (s *Service) CreateToken(ctx context.Context, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	if !validRole(role) {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	raw := uuid.NewString() + uuid.NewString()

	t := storage.Token{
		ID:        uuid.NewString(),
		Name:      name,
		TokenHash: hashToken(raw),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.CreateToken(ctx, t); err != nil {
		return nil, "", fmt.Errorf("create token: %w", err)
	}
	return &t, raw, nil
}

func (s *Service) ListTokens(ctx context.Context) ([]storage.Token, error) {
	return s.tokens.ListTokens(ctx)
}

func (s *Service) RevokeToken(ctx context.Context, id string) error {
	return s.tokens.DeleteToken(ctx, id)
}

// ValidateToken resolves a raw bearer token.
func (s *Service) ValidateToken(ctx context.Context, raw string) (*storage.Token, error) {
	t, err := s.tokens.GetTokenByHash(ctx, hashToken(raw))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}

	if err := s.tokens.UpdateTokenLastUsed(ctx, t.ID); err != nil {
		logging.For("auth").WithError(err).WithField("token_id", t.ID).Warn("update last used")
	}
	return t, nil
}

func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}
