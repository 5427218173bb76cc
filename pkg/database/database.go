package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/school-intake-api/pkg/config"
)

// Supported ledger drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open returns a configured ledger database. Postgres is built from the discrete settings unless a
// DSN is given; SQLite always needs a DSN (a file path or ":memory:").
func Open(cfg config.LedgerConfig) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	var dsn string
	switch driver {
	case DriverPostgres:
		dsn = cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
				cfg.Host,
				cfg.Port,
				cfg.User,
				cfg.Password,
				cfg.Name,
				cfg.SSLMode,
			)
		}
	case DriverSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite ledger requires DB_DSN")
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent submissions
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

const schema = `CREATE TABLE IF NOT EXISTS submission_runs (
	id TEXT PRIMARY KEY,
	school_name TEXT NOT NULL,
	contact_email TEXT NOT NULL,
	parent_record_id TEXT,
	teacher_count INTEGER NOT NULL DEFAULT 0,
	children_created INTEGER NOT NULL DEFAULT 0,
	document_url TEXT,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	stages TEXT NOT NULL DEFAULT '[]',
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
)`

const startedIndex = `CREATE INDEX IF NOT EXISTS idx_submission_runs_started_at ON submission_runs (started_at)`

// EnsureSchema creates the ledger table when missing. The statements are valid on both drivers.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range []string{schema, startedIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}
