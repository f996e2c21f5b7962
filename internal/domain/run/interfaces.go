package run

import (
	"context"

	"github.com/rpggio/phasefold/internal/domain/journal"
)

// Repository provides persistence operations for runs.
type Repository interface {
	Create(ctx context.Context, r *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Finish(ctx context.Context, r *Run) error
	List(ctx context.Context, opts ListOptions) ([]Run, error)
	AddBin(ctx context.Context, bin *BinOutcome) error
	Bins(ctx context.Context, runID string) ([]BinOutcome, error)
}

// Journal receives run events.
type Journal interface {
	Append(ctx context.Context, entry *journal.Entry) error
}
