package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/metrics"
	"github.com/bher20/bpimanager/internal/storage"
)

// Config controls how the rates service behaves.
type Config struct {
	// SeedPath is an optional JSON file used instead of the embedded seed.
	SeedPath string
	// DefaultNames overrides entries of DefaultLocalizedNames.
	DefaultNames map[string]string
}

// Store is the persistence the service needs.
type Store interface {
	storage.CurrencyStore
	storage.SnapshotStore
}

// Service ingests feeds and serves the current feed and its localized view.
type Service struct {
	store storage.SnapshotStore
	dir   *Directory
	cache *Cache

	// mu serializes ingestions so the cache always holds the feed of the
	// most recently committed snapshot.
	mu sync.Mutex
}

func NewService(cfg Config, st Store) *Service {
	return &Service{
		store: st,
		dir:   NewDirectory(st, cfg.DefaultNames),
		cache: NewCache(st, NewSeed(cfg.SeedPath)),
	}
}

func (s *Service) Directory() *Directory { return s.dir }

func (s *Service) Cache() *Cache { return s.cache }

// Ingest validates f, reconciles its currencies into the directory, stores it
// as a new snapshot and finally makes it the cached feed. The cache is only
// written after the snapshot is committed.
func (s *Service) Ingest(ctx context.Context, f *Feed) (*storage.Snapshot, error) {
	started := time.Now()
	log := logging.For("rates").WithField("run_id", uuid.NewString())

	feed, err := normalizeFeed(f)
	if err != nil {
		metrics.RecordIngestion("invalid", started, 0)
		log.WithError(err).Warn("rejected feed")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.persist(ctx, feed)
	if err != nil {
		metrics.RecordIngestion("error", started, 0)
		log.WithError(err).Error("ingestion failed")
		return nil, err
	}
	s.cache.Write(feed)

	metrics.RecordIngestion("success", started, len(feed.BPI))
	log.WithFields(map[string]any{
		"snapshot_id": snap.ID,
		"currencies":  len(snap.Rates),
		"updated_iso": snap.UpdatedISO,
	}).Info("feed ingested")
	return snap, nil
}

func (s *Service) persist(ctx context.Context, f *Feed) (*storage.Snapshot, error) {
	for _, code := range sortedCodes(f.BPI) {
		if err := s.dir.Reconcile(ctx, code, f.BPI[code].Description); err != nil {
			return nil, err
		}
	}
	snap := SnapshotFromFeed(f)
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// normalizeFeed checks that f can be stored and returns a copy whose entries
// carry their map key as code.
func normalizeFeed(f *Feed) (*Feed, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidFeed)
	}
	if len(f.BPI) == 0 {
		return nil, fmt.Errorf("%w: bpi has no currencies", ErrInvalidFeed)
	}
	out := f.Clone()
	for key, cr := range out.BPI {
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: blank currency code", ErrInvalidFeed)
		}
		if len(key) > maxCodeLen {
			return nil, fmt.Errorf("%w: currency code %q too long", ErrInvalidFeed, key)
		}
		// The map key names the currency; an entry's own code is advisory.
		cr.Code = key
		out.BPI[key] = cr
	}
	return out, nil
}

// Current returns the feed served by the first non-empty tier.
func (s *Service) Current(ctx context.Context) (*Feed, Source, error) {
	return s.cache.Read(ctx)
}

// LocalizedView renders the current feed with directory names.
func (s *Service) LocalizedView(ctx context.Context) (*View, error) {
	f, _, err := s.cache.Read(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.dir.LocalizedNames(ctx)
	if err != nil {
		return nil, err
	}
	return BuildView(f, names), nil
}

// CurrencyDetails lists the directory joined with the current feed.
func (s *Service) CurrencyDetails(ctx context.Context) ([]CurrencyDetail, error) {
	list, err := s.dir.List(ctx)
	if err != nil {
		return nil, err
	}
	f, err := s.currentForDetails(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CurrencyDetail, 0, len(list))
	for _, c := range list {
		out = append(out, detail(c, f))
	}
	return out, nil
}

// CurrencyDetail returns one directory entry joined with the current feed.
func (s *Service) CurrencyDetail(ctx context.Context, code string) (*CurrencyDetail, error) {
	c, err := s.dir.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	f, err := s.currentForDetails(ctx)
	if err != nil {
		return nil, err
	}
	d := detail(*c, f)
	return &d, nil
}

// currentForDetails tolerates a missing seed: the directory is still worth
// listing without rates.
func (s *Service) currentForDetails(ctx context.Context) (*Feed, error) {
	f, _, err := s.cache.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrSeedUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

func detail(c storage.Currency, f *Feed) CurrencyDetail {
	d := CurrencyDetail{
		Code:        c.Code,
		ChineseName: c.LocalizedName,
		EnglishName: c.EnglishName,
	}
	if f == nil {
		return d
	}
	if cr, ok := f.BPI[c.Code]; ok {
		rf := cr.RateFloat
		d.Symbol = cr.Symbol
		d.Rate = cr.Rate
		d.Description = cr.Description
		d.RateFloat = &rf
		d.UpdateTime = FormatUpdateTime(f.Time.UpdatedISO)
	}
	return d
}
