package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu         sync.RWMutex
	currencies map[string]Currency
	snapshots  []Snapshot
	rates      map[uint][]RateRecord
	tokens     map[string]Token
	jobs       map[string]ScheduledJob
	nextSnapID uint
	nextRateID uint
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		currencies: make(map[string]Currency),
		rates:      make(map[uint][]RateRecord),
		tokens:     make(map[string]Token),
		jobs:       make(map[string]ScheduledJob),
	}
}

// NewMemoryWithCurrencies returns a MemoryStorage whose directory is
// preloaded with the given entries.
func NewMemoryWithCurrencies(list []Currency) *MemoryStorage {
	m := NewMemory()
	for _, c := range list {
		m.currencies[c.Code] = c
	}
	return m
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Currencies

func (m *MemoryStorage) ListCurrencies(ctx context.Context) ([]Currency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Currency, 0, len(m.currencies))
	for _, c := range m.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStorage) GetCurrency(ctx context.Context, code string) (*Currency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.currencies[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStorage) CreateCurrency(ctx context.Context, c Currency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.currencies[c.Code]; ok {
		return fmt.Errorf("currency %s: %w", c.Code, ErrConflict)
	}
	m.currencies[c.Code] = c
	return nil
}

func (m *MemoryStorage) UpdateCurrency(ctx context.Context, c Currency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.currencies[c.Code]; !ok {
		return fmt.Errorf("currency %s: %w", c.Code, ErrNotFound)
	}
	m.currencies[c.Code] = c
	return nil
}

func (m *MemoryStorage) DeleteCurrency(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.currencies[code]; !ok {
		return fmt.Errorf("currency %s: %w", code, ErrNotFound)
	}
	for _, rows := range m.rates {
		for _, r := range rows {
			if r.CurrencyCode == code {
				return fmt.Errorf("currency %s: %w", code, ErrInUse)
			}
		}
	}
	delete(m.currencies, code)
	return nil
}

func (m *MemoryStorage) UpsertCurrency(ctx context.Context, c Currency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.currencies[c.Code]; ok {
		existing.EnglishName = c.EnglishName
		m.currencies[c.Code] = existing
		return nil
	}
	m.currencies[c.Code] = c
	return nil
}

// Snapshots

func (m *MemoryStorage) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(snap.Rates))
	for _, r := range snap.Rates {
		if _, ok := m.currencies[r.CurrencyCode]; !ok {
			return fmt.Errorf("save snapshot: %w", ErrUnknownCurrency)
		}
		if _, dup := seen[r.CurrencyCode]; dup {
			return fmt.Errorf("currency %s listed twice: %w", r.CurrencyCode, ErrConflict)
		}
		seen[r.CurrencyCode] = struct{}{}
	}

	row := *snap
	row.Rates = nil
	m.nextSnapID++
	row.ID = m.nextSnapID
	if row.CreateTime.IsZero() {
		row.CreateTime = time.Now().UTC()
	}

	saved := make([]RateRecord, len(snap.Rates))
	for i, r := range snap.Rates {
		m.nextRateID++
		r.ID = m.nextRateID
		r.SnapshotID = row.ID
		r.Currency = nil
		saved[i] = r
	}

	m.snapshots = append(m.snapshots, row)
	m.rates[row.ID] = saved

	row.Rates = append([]RateRecord(nil), saved...)
	*snap = row
	return nil
}

func (m *MemoryStorage) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.snapshots) == 0 {
		return nil, nil
	}
	latest := m.snapshots[0]
	for _, s := range m.snapshots[1:] {
		if s.CreateTime.After(latest.CreateTime) ||
			(s.CreateTime.Equal(latest.CreateTime) && s.ID > latest.ID) {
			latest = s
		}
	}
	rows := m.rates[latest.ID]
	latest.Rates = make([]RateRecord, len(rows))
	for i, r := range rows {
		if c, ok := m.currencies[r.CurrencyCode]; ok {
			cp := c
			r.Currency = &cp
		}
		latest.Rates[i] = r
	}
	return &latest, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
		m.tokens[id] = t
	}
	return nil
}

// Scheduled jobs

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

func (m *MemoryStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
