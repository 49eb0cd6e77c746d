package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

// Migrate creates or updates the tables from the model structs.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Currency{},
		&Snapshot{},
		&RateRecord{},
		&Token{},
		&ScheduledJob{},
	)
}

// SQLDB exposes the underlying connection pool, e.g. for goose migrations.
func (s *GormStorage) SQLDB() (*sql.DB, error) {
	return s.db.DB()
}

// Dialect returns the gorm dialector name ("postgres" or "sqlite").
func (s *GormStorage) Dialect() string {
	return s.db.Dialector.Name()
}

// Currencies

func (s *GormStorage) ListCurrencies(ctx context.Context) ([]Currency, error) {
	var out []Currency
	result := s.db.WithContext(ctx).Order("code").Find(&out)
	return out, result.Error
}

func (s *GormStorage) GetCurrency(ctx context.Context, code string) (*Currency, error) {
	var c Currency
	result := s.db.WithContext(ctx).First(&c, "code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

func (s *GormStorage) CreateCurrency(ctx context.Context, c Currency) error {
	err := s.db.WithContext(ctx).Create(&c).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("currency %s: %w", c.Code, ErrConflict)
	}
	return err
}

func (s *GormStorage) UpdateCurrency(ctx context.Context, c Currency) error {
	result := s.db.WithContext(ctx).Model(&Currency{}).
		Where("code = ?", c.Code).
		Updates(map[string]any{
			"localized_name": c.LocalizedName,
			"english_name":   c.EnglishName,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("currency %s: %w", c.Code, ErrNotFound)
	}
	return nil
}

func (s *GormStorage) DeleteCurrency(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&RateRecord{}).Where("currency_code = ?", code).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("currency %s: %w", code, ErrInUse)
		}
		result := tx.Delete(&Currency{}, "code = ?", code)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("currency %s: %w", code, ErrNotFound)
		}
		return nil
	})
}

func (s *GormStorage) UpsertCurrency(ctx context.Context, c Currency) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"english_name"}),
	}).Create(&c).Error
}

// Snapshots

func (s *GormStorage) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	rates := snap.Rates
	codes := make([]string, 0, len(rates))
	seen := make(map[string]struct{}, len(rates))
	for _, r := range rates {
		if _, dup := seen[r.CurrencyCode]; dup {
			return fmt.Errorf("currency %s listed twice: %w", r.CurrencyCode, ErrConflict)
		}
		seen[r.CurrencyCode] = struct{}{}
		codes = append(codes, r.CurrencyCode)
	}

	row := *snap
	row.Rates = nil
	if row.CreateTime.IsZero() {
		row.CreateTime = time.Now().UTC()
	}

	saved := make([]RateRecord, len(rates))
	copy(saved, rates)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(codes) > 0 {
			var known int64
			if err := tx.Model(&Currency{}).Where("code IN ?", codes).Count(&known).Error; err != nil {
				return err
			}
			if int(known) != len(codes) {
				return ErrUnknownCurrency
			}
		}

		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}
		if len(saved) == 0 {
			return nil
		}
		for i := range saved {
			saved[i].ID = 0
			saved[i].SnapshotID = row.ID
			saved[i].Currency = nil
		}
		return tx.Omit(clause.Associations).Create(&saved).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save snapshot: %w", ErrConflict)
		}
		return fmt.Errorf("save snapshot: %w", err)
	}

	row.Rates = saved
	*snap = row
	return nil
}

func (s *GormStorage) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	result := s.db.WithContext(ctx).
		Preload("Rates", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Rates.Currency").
		Order("create_time desc").
		Order("id desc").
		First(&snap)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &snap, nil
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	result := s.db.WithContext(ctx).First(&token, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &token, nil
}

func (s *GormStorage) ListTokens(ctx context.Context) ([]Token, error) {
	var tokens []Token
	result := s.db.WithContext(ctx).Order("created_at").Find(&tokens)
	return tokens, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", now).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled Jobs & Locking

func (s *GormStorage) WithAdvisoryLock(ctx context.Context, key int64, fn func(context.Context) error) (bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		// SQLite deployments are single instance.
		return true, fn(ctx)
	}
	db, err := s.db.DB()
	if err != nil {
		return false, err
	}
	return withAdvisoryLock(ctx, db, key, fn)
}

// withAdvisoryLock holds a session level postgres lock around fn. Session
// locks belong to a single backend connection, so lock, fn and unlock all
// share one connection taken from the pool.
func withAdvisoryLock(ctx context.Context, db *sql.DB, key int64, fn func(context.Context) error) (bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	defer conn.Close()

	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	runErr := fn(ctx)

	var released bool
	err = conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", key).Scan(&released)
	switch {
	case err != nil:
		// The session may still hold the lock; never hand it back to the pool.
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		return true, errors.Join(runErr, fmt.Errorf("advisory unlock: %w", err))
	case !released:
		return true, errors.Join(runErr, fmt.Errorf("advisory unlock %d: %w", key, ErrLockNotHeld))
	}
	return true, runErr
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	var job ScheduledJob
	result := s.db.WithContext(ctx).First(&job, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}
