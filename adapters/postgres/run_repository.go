package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/ports"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL. The full run is stored as a
// JSONB document next to the columns used for listing and filtering.
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

type runRow struct {
	ID          string    `db:"id"`
	Outcome     string    `db:"outcome"`
	Status      string    `db:"status"`
	Patterns    int       `db:"pattern_count"`
	DatasetSize int       `db:"dataset_size"`
	Fingerprint string    `db:"fingerprint"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r runRow) item() ports.RunListItem {
	return ports.RunListItem{
		ID:          core.RunID(r.ID),
		Outcome:     r.Outcome,
		Status:      discovery.RunStatus(r.Status),
		Patterns:    r.Patterns,
		DatasetSize: r.DatasetSize,
		Fingerprint: core.Fingerprint(r.Fingerprint),
		CreatedAt:   core.NewTimestamp(r.CreatedAt),
	}
}

// SaveRun inserts a run, replacing a stored run with the same ID
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run *discovery.AnalysisRun) error {
	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, outcome, status, pattern_count, dataset_size, corrected_alpha, fingerprint, run, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			pattern_count = EXCLUDED.pattern_count,
			run = EXCLUDED.run
	`, run.ID.String(), run.Outcome, string(run.Status), len(run.Patterns), run.Summary.DatasetSize,
		run.CorrectedAlpha, run.Fingerprint.String(), doc, run.CreatedAt.Time())
	return err
}

// GetRun retrieves a run by ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*discovery.AnalysisRun, error) {
	var doc []byte
	err := r.db.GetContext(ctx, &doc, `SELECT run FROM analysis_runs WHERE id = $1`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrRunNotFound
		}
		return nil, err
	}

	var run discovery.AnalysisRun
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns run summaries, newest first
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, filters ports.RunFilters) ([]ports.RunListItem, error) {
	query := `
		SELECT id, outcome, status, pattern_count, dataset_size, fingerprint, created_at
		FROM analysis_runs`

	var (
		where []string
		args  []interface{}
	)
	if filters.Outcome != "" {
		args = append(args, filters.Outcome)
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	items := make([]ports.RunListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

// DeleteRun removes a stored run
func (r *RunRepositoryImpl) DeleteRun(ctx context.Context, id core.RunID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrRunNotFound
	}
	return nil
}
