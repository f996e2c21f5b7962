// Package run keeps the ledger of batch runs and their per-bin outcomes.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/repository"
)

// Service records runs. It implements batch.Recorder.
type Service struct {
	repo    Repository
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
}

var _ batch.Recorder = (*Service)(nil)

// NewService creates a new run service. journal may be nil.
func NewService(repo Repository, j Journal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, journal: j, logger: logger, now: time.Now}
}

// StartRun creates a running run for jobs under root.
func (s *Service) StartRun(ctx context.Context, root string, jobs []binning.Job) (string, error) {
	r := &Run{
		ID:        uuid.NewString(),
		Root:      root,
		Status:    StatusRunning,
		Planned:   len(jobs),
		StartedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	s.note(ctx, &journal.Entry{
		Type:    journal.TypeRunStarted,
		RunID:   &r.ID,
		Path:    root,
		Summary: fmt.Sprintf("started run over %d bins", len(jobs)),
	})
	return r.ID, nil
}

// RecordBin stores one bin outcome.
func (s *Service) RecordBin(ctx context.Context, runID string, outcome batch.Outcome) error {
	if runID == "" {
		return ErrInvalidInput
	}
	bin := &BinOutcome{
		RunID:      runID,
		Index:      outcome.Job.Index,
		Name:       outcome.Job.Name,
		Dir:        outcome.Job.Dir,
		Status:     BinOK,
		RecordedAt: s.now().UTC(),
	}
	if outcome.Err != nil {
		bin.Status = BinFailed
		bin.Stage = outcome.Err.Stage
		bin.Error = outcome.Err.Err.Error()
	} else {
		quality, loglike := outcome.Result.FitQuality, outcome.Result.LogLike
		bin.FitQuality = &quality
		bin.LogLike = &loglike
	}
	if err := s.repo.AddBin(ctx, bin); err != nil {
		return fmt.Errorf("recording bin %d: %w", bin.Index, err)
	}
	if outcome.Err != nil {
		details, _ := journal.Details(map[string]any{"index": bin.Index, "stage": bin.Stage, "error": bin.Error})
		s.note(ctx, &journal.Entry{
			Type:    journal.TypeBinFailed,
			RunID:   &runID,
			Path:    bin.Dir,
			Summary: fmt.Sprintf("bin %s failed at %s", bin.Name, bin.Stage),
			Details: details,
		})
	}
	return nil
}

// FinishRun closes a run with the counts of agg.
func (s *Service) FinishRun(ctx context.Context, runID string, agg *batch.Aggregate, runErr error) error {
	r, err := s.repo.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRunNotFound
		}
		return fmt.Errorf("loading run: %w", err)
	}

	finished := s.now().UTC()
	r.FinishedAt = &finished
	if agg != nil {
		r.Bins = agg.Len()
		r.Failed = agg.Failed()
	}
	switch {
	case runErr != nil:
		r.Status = StatusFailed
		r.Error = runErr.Error()
	case r.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSucceeded
	}
	if err := s.repo.Finish(ctx, r); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	s.note(ctx, &journal.Entry{
		Type:    journal.TypeRunFinished,
		RunID:   &r.ID,
		Path:    r.Root,
		Summary: fmt.Sprintf("run %s: %d bins, %d failed", r.Status, r.Bins, r.Failed),
	})
	return nil
}

// Get returns a run and its bins.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("loading run: %w", err)
	}
	bins, err := s.repo.Bins(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading bins: %w", err)
	}
	return &Detail{Run: *r, Bins: bins}, nil
}

// List returns runs newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Run, error) {
	return s.repo.List(ctx, opts)
}

func (s *Service) note(ctx context.Context, entry *journal.Entry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.Warn("journal append failed", "type", entry.Type, "error", err)
	}
}
