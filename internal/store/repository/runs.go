package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calloway/gridfax/internal/store"
)

// RunRepository persists compilation run history.
type RunRepository struct {
	db *store.Database
}

// NewRunRepository constructs a RunRepository.
func NewRunRepository(db *store.Database) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new run row in the running state.
func (r *RunRepository) CreateRun(ctx context.Context, run *store.CompileRun) error {
	touched, warnings, err := runJSON(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO compile_runs (
			run_id, season, end_week, season_type, status,
			games_processed, games_failed, touched, warnings, started_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`

	if _, err := r.db.DB().ExecContext(ctx, query,
		run.RunID, run.Season, run.EndWeek, run.SeasonType, run.Status,
		run.GamesProcessed, run.GamesFailed, touched, warnings, run.StartedAt,
	); err != nil {
		return fmt.Errorf("insert compile run: %w", err)
	}
	return nil
}

// UpdateProgress refreshes the counters of an in-flight run.
func (r *RunRepository) UpdateProgress(ctx context.Context, run *store.CompileRun) error {
	touched, warnings, err := runJSON(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE compile_runs
		SET games_processed = $2,
			games_failed = $3,
			touched = $4,
			warnings = $5
		WHERE run_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query,
		run.RunID, run.GamesProcessed, run.GamesFailed, touched, warnings,
	); err != nil {
		return fmt.Errorf("update compile run progress: %w", err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (r *RunRepository) FinishRun(ctx context.Context, run *store.CompileRun) error {
	touched, warnings, err := runJSON(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE compile_runs
		SET status = $2,
			games_processed = $3,
			games_failed = $4,
			touched = $5,
			warnings = $6,
			last_error = $7,
			completed_at = NOW()
		WHERE run_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query,
		run.RunID, run.Status, run.GamesProcessed, run.GamesFailed,
		touched, warnings, run.LastError,
	); err != nil {
		return fmt.Errorf("finish compile run: %w", err)
	}
	return nil
}

// AbortStaleRuns marks rows left running by a previous process as
// aborted (used during service startup).
func (r *RunRepository) AbortStaleRuns(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE compile_runs
		SET status = 'aborted',
			last_error = 'interrupted by service restart',
			completed_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("abort stale runs: %w", err)
	}
	return nil
}

// GetRun returns one run by id, or nil when unknown.
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*store.CompileRun, error) {
	query := selectRuns + " WHERE run_id = $1"

	run, err := scanRun(r.db.DB().QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get compile run: %w", err)
	}
	return run, nil
}

// ListRecent returns the most recent runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*store.CompileRun, error) {
	query := selectRuns + " ORDER BY started_at DESC LIMIT $1"

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list compile runs: %w", err)
	}
	defer rows.Close()

	var runs []*store.CompileRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRuns = `
	SELECT run_id, season, end_week, season_type, status,
		games_processed, games_failed, touched, warnings,
		last_error, started_at, completed_at
	FROM compile_runs`

func runJSON(run *store.CompileRun) ([]byte, []byte, error) {
	touched := run.Touched
	if touched == nil {
		touched = map[string]int64{}
	}
	touchedJSON, err := json.Marshal(touched)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal run touched counts: %w", err)
	}

	warnings := run.Warnings
	if warnings == nil {
		warnings = []store.RunWarning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal run warnings: %w", err)
	}

	return touchedJSON, warningsJSON, nil
}

func scanRun(scanner interface {
	Scan(dest ...interface{}) error
}) (*store.CompileRun, error) {
	run := &store.CompileRun{}
	var touched, warnings []byte

	err := scanner.Scan(
		&run.RunID,
		&run.Season,
		&run.EndWeek,
		&run.SeasonType,
		&run.Status,
		&run.GamesProcessed,
		&run.GamesFailed,
		&touched,
		&warnings,
		&run.LastError,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(touched, &run.Touched); err != nil {
		return nil, fmt.Errorf("decode run touched counts: %w", err)
	}
	if err := json.Unmarshal(warnings, &run.Warnings); err != nil {
		return nil, fmt.Errorf("decode run warnings: %w", err)
	}
	return run, nil
}
