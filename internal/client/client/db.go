package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/ilyakarpov/paycodes/internal/client/migrations"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/preferences"
	"github.com/ilyakarpov/paycodes/internal/client/repositories/records"
	"github.com/ilyakarpov/paycodes/internal/logging"
)

// Repositories bundles the local storage handles created by InitDatabase.
type Repositories struct {
	DB          *sql.DB
	Records     *records.Repository
	RecordStore *records.Store
	Preferences preferences.Repository
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the sqlite database at dsn, migrates it, and returns
// the repository bundle. Schema bootstrap is best-effort: a migration failure
// is logged and the existing schema is used as-is, so local reads keep
// working with whatever state the device has.
func InitDatabase(ctx context.Context, dsn string, logger logging.Logger) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		logger.Warn(ctx, "schema bootstrap failed, using existing schema", "error", err)
	}

	return &Repositories{
		DB:          db,
		Records:     records.NewRepository(db),
		RecordStore: records.NewStore(db, logger),
		Preferences: preferences.NewSQLiteRepository(db),
	}, nil
}
