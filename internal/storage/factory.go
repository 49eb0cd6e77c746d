package storage

import (
	"context"
	"fmt"

	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/migrate"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
	// Migrations selects how the schema is prepared: "auto" (gorm
	// AutoMigrate), "goose" (embedded SQL migrations) or "none".
	Migrations string
}

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	log := logging.For("storage")

	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Info("using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.WithField("driver", drv).Info("using gorm backend")
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := prepareSchema(ctx, st, drv, cfg.Migrations); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}

func prepareSchema(ctx context.Context, st *GormStorage, driver, mode string) error {
	switch mode {
	case "", "auto":
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("storage migrate: %w", err)
		}
	case "goose":
		db, err := st.SQLDB()
		if err != nil {
			return err
		}
		if err := migrate.Up(ctx, db, driver); err != nil {
			return fmt.Errorf("storage goose up: %w", err)
		}
	case "none":
	default:
		return fmt.Errorf("unsupported migrations mode %q", mode)
	}
	return nil
}
