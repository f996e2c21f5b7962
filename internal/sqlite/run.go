package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/repository"
)

// RunRepository implements run.Repository for SQLite
type RunRepository struct {
	db *DB
}

var _ run.Repository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run
func (r *RunRepository) Create(ctx context.Context, rn *run.Run) error {
	query := `
		INSERT INTO runs (
			id, root, status, planned, bins, failed, error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rn.ID,
		rn.Root,
		rn.Status,
		rn.Planned,
		rn.Bins,
		rn.Failed,
		rn.Error,
		rn.StartedAt,
		rn.FinishedAt,
	)
	if err != nil {
		return ledgerError("create run "+rn.ID, err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id string) (*run.Run, error) {
	query := `
		SELECT id, root, status, planned, bins, failed, error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	rn, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rn, nil
}

// Finish stores the final status and counts of a run
func (r *RunRepository) Finish(ctx context.Context, rn *run.Run) error {
	query := `
		UPDATE runs
		SET status = ?, bins = ?, failed = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		rn.Status,
		rn.Bins,
		rn.Failed,
		rn.Error,
		rn.FinishedAt,
		rn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finished run: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns runs newest first
func (r *RunRepository) List(ctx context.Context, opts run.ListOptions) ([]run.Run, error) {
	query := `
		SELECT id, root, status, planned, bins, failed, error, started_at, finished_at
		FROM runs
	`
	args := []any{}
	if opts.Status != nil {
		query += " WHERE status = ?"
		args = append(args, *opts.Status)
	}

	query += " ORDER BY started_at DESC, rowid DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []run.Run
	for rows.Next() {
		rn, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *rn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

// AddBin inserts a bin outcome, replacing an earlier outcome for the same bin
func (r *RunRepository) AddBin(ctx context.Context, bin *run.BinOutcome) error {
	query := `
		INSERT OR REPLACE INTO run_bins (
			run_id, bin_index, name, dir, status, stage, error,
			fit_quality, loglike, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		bin.RunID,
		bin.Index,
		bin.Name,
		bin.Dir,
		bin.Status,
		bin.Stage,
		bin.Error,
		bin.FitQuality,
		bin.LogLike,
		bin.RecordedAt,
	)
	if err != nil {
		return ledgerError(fmt.Sprintf("add bin %d to run %s", bin.Index, bin.RunID), err)
	}

	return nil
}

// Bins returns the outcomes of a run in bin order
func (r *RunRepository) Bins(ctx context.Context, runID string) ([]run.BinOutcome, error) {
	query := `
		SELECT
			run_id, bin_index, name, dir, status, stage, error,
			fit_quality, loglike, recorded_at
		FROM run_bins
		WHERE run_id = ?
		ORDER BY bin_index
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	defer rows.Close()

	var bins []run.BinOutcome
	for rows.Next() {
		var bin run.BinOutcome
		var quality sql.NullInt64
		var loglike sql.NullFloat64
		if err := rows.Scan(
			&bin.RunID,
			&bin.Index,
			&bin.Name,
			&bin.Dir,
			&bin.Status,
			&bin.Stage,
			&bin.Error,
			&quality,
			&loglike,
			&bin.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bin: %w", err)
		}
		if quality.Valid {
			q := int(quality.Int64)
			bin.FitQuality = &q
		}
		if loglike.Valid {
			bin.LogLike = &loglike.Float64
		}
		bins = append(bins, bin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bin rows: %w", err)
	}

	return bins, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*run.Run, error) {
	var rn run.Run
	var finishedAt sql.NullTime
	if err := s.Scan(
		&rn.ID,
		&rn.Root,
		&rn.Status,
		&rn.Planned,
		&rn.Bins,
		&rn.Failed,
		&rn.Error,
		&rn.StartedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		rn.FinishedAt = &finishedAt.Time
	}
	return &rn, nil
}
