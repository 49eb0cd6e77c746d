package storage

import (
	"context"
	"time"
)

// CurrencyStore persists the currency directory. Get returns nil, nil when
// the code is unknown.
type CurrencyStore interface {
	ListCurrencies(ctx context.Context) ([]Currency, error)
	GetCurrency(ctx context.Context, code string) (*Currency, error)
	CreateCurrency(ctx context.Context, c Currency) error
	UpdateCurrency(ctx context.Context, c Currency) error
	DeleteCurrency(ctx context.Context, code string) error

	// UpsertCurrency inserts c, or when the code already exists refreshes
	// only its English name.
	UpsertCurrency(ctx context.Context, c Currency) error
}

// SnapshotStore persists snapshots together with their rate rows.
type SnapshotStore interface {
	// SaveSnapshot inserts snap and snap.Rates in one transaction, assigning
	// IDs and CreateTime. Every rate must reference an existing currency.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// LatestSnapshot returns the most recently created snapshot with its rate
	// rows (each with Currency loaded), or nil, nil if none exists.
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
}

// TokenStore persists API tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error
}

// JobStore records background job runs.
type JobStore interface {
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)
}

// Storage abstracts persistence for the currency directory, snapshots,
// tokens and job bookkeeping.
type Storage interface {
	CurrencyStore
	SnapshotStore
	TokenStore
	JobStore

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}

// Locker is implemented by backends that can coordinate background jobs
// across replicas.
type Locker interface {
	// WithAdvisoryLock runs fn while holding the lock for key. It reports
	// false without calling fn when another holder has the lock.
	WithAdvisoryLock(ctx context.Context, key int64, fn func(context.Context) error) (bool, error)
}
