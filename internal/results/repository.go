package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/pkg/database"
)

// Run is one persisted simulation run.
type Run struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	ConfigHash string     `json:"config_hash"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    *Summary   `json:"summary,omitempty"`
}

// Repository persists runs and their step records to PostgreSQL.
type Repository struct {
	db *database.DB
}

// NewRepository creates a results repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the results tables when they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			config_hash TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ,
			summary     JSONB
		);

		CREATE TABLE IF NOT EXISTS run_steps (
			run_id    BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			step_date DATE NOT NULL,
			record    JSONB NOT NULL,
			PRIMARY KEY (run_id, step_date)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure results schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run row and returns its id.
func (r *Repository) CreateRun(ctx context.Context, name, configHash string) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO runs (name, config_hash) VALUES ($1, $2) RETURNING id`,
		name, configHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// SaveSteps writes the recorded step rows for a run in one batch.
func (r *Repository) SaveSteps(ctx context.Context, runID int64, records []*contracts.StepRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal step %s: %w", rec.Date.Format("2006-01-02"), err)
		}
		batch.Queue(
			`INSERT INTO run_steps (run_id, step_date, record) VALUES ($1, $2, $3)
			 ON CONFLICT (run_id, step_date) DO UPDATE SET record = EXCLUDED.record`,
			runID, rec.Date, data,
		)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save steps for run %d: %w", runID, err)
		}
	}
	return nil
}

// FinishRun stamps the run as finished and stores its summary.
func (r *Repository) FinishRun(ctx context.Context, runID int64, summary Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx,
		`UPDATE runs SET finished_at = now(), summary = $2 WHERE id = $1`,
		runID, data,
	)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// GetRun loads one run by id.
func (r *Repository) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, config_hash, started_at, finished_at, summary
		 FROM runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, config_hash, started_at, finished_at, summary
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetSteps loads the step records for a run in date order.
func (r *Repository) GetSteps(ctx context.Context, runID int64) ([]*contracts.StepRecord, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT record FROM run_steps WHERE run_id = $1 ORDER BY step_date`, runID)
	if err != nil {
		return nil, fmt.Errorf("get steps for run %d: %w", runID, err)
	}
	defer rows.Close()

	var records []*contracts.StepRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var rec contracts.StepRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal step for run %d: %w", runID, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var summary []byte
	if err := row.Scan(&run.ID, &run.Name, &run.ConfigHash, &run.StartedAt, &run.FinishedAt, &summary); err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		run.Summary = &Summary{}
		if err := json.Unmarshal(summary, run.Summary); err != nil {
			return nil, err
		}
	}
	return &run, nil
}
