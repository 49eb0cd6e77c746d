package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/bher20/bpimanager/internal/logging"
)

//go:embed migrations
var embedMigrations embed.FS

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

func configureGoose(driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")
	goose.SetLogger(logging.For("migrate"))

	switch driver {
	case "sqlite", "sqlite3":
		return goose.SetDialect("sqlite3")
	case "postgres", "pgx":
		return goose.SetDialect("postgres")
	}
	return fmt.Errorf("unsupported driver for goose: %s", driver)
}

func getMigrationDir(driver string) string {
	if driver == "postgres" || driver == "pgx" {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

// Up applies all pending migrations to db.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := configureGoose(driver); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, getMigrationDir(driver))
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := configureGoose(driver); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, getMigrationDir(driver))
}

// Status logs the state of every migration.
func Status(ctx context.Context, db *sql.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := configureGoose(driver); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, getMigrationDir(driver))
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := configureGoose(driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
