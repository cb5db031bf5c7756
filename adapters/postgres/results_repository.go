package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"

	"kpiscout/domain/core"
	"kpiscout/domain/insight"
	"kpiscout/internal/errors"
	"kpiscout/ports"
)

// ResultsRepositoryImpl implements ResultsRepository over sqlx. Queries use
// "?" placeholders and are rebound for the connected driver.
type ResultsRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultsRepository creates a new results repository
func NewResultsRepository(db *sqlx.DB) ports.ResultsRepository {
	return &ResultsRepositoryImpl{db: db}
}

type runRow struct {
	ID          string    `db:"id"`
	DatasetName string    `db:"dataset_name"`
	Fingerprint string    `db:"fingerprint"`
	Rows        int       `db:"n_rows"`
	Cols        int       `db:"n_cols"`
	Cards       int       `db:"n_cards"`
	Warnings    int       `db:"n_warnings"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r runRow) summary() insight.RunSummary {
	return insight.RunSummary{
		RunID:       core.RunID(r.ID),
		DatasetName: r.DatasetName,
		Fingerprint: r.Fingerprint,
		Rows:        r.Rows,
		Cols:        r.Cols,
		Cards:       r.Cards,
		Warnings:    r.Warnings,
		CreatedAt:   core.NewTimestamp(r.CreatedAt),
	}
}

// Save inserts or replaces a run
func (r *ResultsRepositoryImpl) Save(ctx context.Context, results *insight.Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "failed to encode results")
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO analysis_runs (id, dataset_name, fingerprint, n_rows, n_cols, n_cards, n_warnings, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			dataset_name = excluded.dataset_name,
			fingerprint = excluded.fingerprint,
			n_rows = excluded.n_rows,
			n_cols = excluded.n_cols,
			n_cards = excluded.n_cards,
			n_warnings = excluded.n_warnings,
			payload = excluded.payload
	`),
		results.RunID.String(),
		results.DatasetName,
		results.Fingerprint.String(),
		results.Profile.Rows,
		results.Profile.Cols,
		len(results.Insights.Cards),
		len(results.Warnings),
		results.CreatedAt.Time().UTC(),
		string(payload),
	)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, err)
	}
	return nil
}

// Get retrieves a full run by ID
func (r *ResultsRepositoryImpl) Get(ctx context.Context, id core.RunID) (*insight.Results, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, r.db.Rebind(`SELECT payload FROM analysis_runs WHERE id = ?`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}

	var results insight.Results
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, errors.Wrapf(err, "failed to decode run %s", id)
	}
	return &results, nil
}

// List returns run summaries, newest first
func (r *ResultsRepositoryImpl) List(ctx context.Context, limit, offset int) ([]insight.RunSummary, error) {
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, dataset_name, fingerprint, n_rows, n_cols, n_cards, n_warnings, created_at
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, err)
	}

	out := make([]insight.RunSummary, len(rows))
	for i, row := range rows {
		out[i] = row.summary()
	}
	return out, nil
}

// Delete removes a run
func (r *ResultsRepositoryImpl) Delete(ctx context.Context, id core.RunID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM analysis_runs WHERE id = ?`), id.String())
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("run " + id.String())
	}
	return nil
}
