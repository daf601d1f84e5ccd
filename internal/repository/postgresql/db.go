package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/codecurser/park-vision-control-system/internal/config"
)

// NewDB opens the pool with the configured driver ("pgx" or "postgres" for lib/pq).
func NewDB(cfg *config.Config) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)

	driver := cfg.DBDriver
	if driver == "" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            SERIAL PRIMARY KEY,
	username      VARCHAR(50) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          VARCHAR(20) NOT NULL DEFAULT 'operator' CHECK (role IN ('admin', 'operator')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS parking_entries (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	plate_number VARCHAR(16) NOT NULL,
	entry_type   VARCHAR(5) NOT NULL CHECK (entry_type IN ('Entry', 'Exit')),
	timestamp    TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	confidence   DOUBLE PRECISION,
	raw_text     TEXT,
	camera_id    TEXT,
	recorded_by  TEXT
);

CREATE INDEX IF NOT EXISTS parking_entries_timestamp_idx ON parking_entries (timestamp DESC);
CREATE INDEX IF NOT EXISTS parking_entries_plate_type_idx ON parking_entries (plate_number, entry_type, timestamp DESC);
`

// Migrate creates the tables the service needs if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// uniqueViolation recognizes SQLSTATE 23505 from either driver.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return pqErr.Constraint, true
	}
	return "", false
}
