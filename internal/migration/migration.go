package migration

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kpiscout/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// step is one schema change. ddl receives the sqlx driver name so Postgres
// and SQLite can differ in column types.
type step struct {
	version string
	name    string
	ddl     func(driver string) []string
}

var steps = []step{
	{
		version: "0001",
		name:    "create analysis_runs",
		ddl: func(driver string) []string {
			payload, ts := "TEXT", "TIMESTAMP"
			if driver == "postgres" {
				payload, ts = "JSONB", "TIMESTAMP WITH TIME ZONE"
			}
			return []string{fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS analysis_runs (
					id TEXT PRIMARY KEY,
					dataset_name TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					n_rows INTEGER NOT NULL,
					n_cols INTEGER NOT NULL,
					n_cards INTEGER NOT NULL,
					n_warnings INTEGER NOT NULL,
					created_at %s NOT NULL,
					payload %s NOT NULL
				)`, ts, payload)}
		},
	},
	{
		version: "0002",
		name:    "index analysis_runs",
		ddl: func(string) []string {
			return []string{
				`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs (created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs (fingerprint)`,
			}
		},
	},
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	logger *zap.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *zap.Logger) *MigrationRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationRunner{logger: logger}
}

// Version returns the latest schema version
func (r *MigrationRunner) Version() string {
	return steps[len(steps)-1].version
}

// Run applies every pending step in order and records it in schema_migrations
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to create schema_migrations table: %w", err))
	}

	applied, err := r.Applied(ctx, db)
	if err != nil {
		return err
	}

	for _, s := range steps {
		if applied[s.version] {
			continue
		}
		if err := r.apply(ctx, db, s); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("migration %s (%s): %w", s.version, s.name, err))
		}
		r.logger.Info("migration applied", zap.String("version", s.version), zap.String("name", s.name))
	}
	return nil
}

// Applied returns the set of recorded versions
func (r *MigrationRunner) Applied(ctx context.Context, db *sqlx.DB) (map[string]bool, error) {
	var versions []string
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("failed to read schema_migrations: %w", err))
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

func (r *MigrationRunner) apply(ctx context.Context, db *sqlx.DB, s step) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range s.ddl(db.DriverName()) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`), s.version, s.name); err != nil {
		return err
	}
	return tx.Commit()
}
