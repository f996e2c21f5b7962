// Package journal keeps an append-only log of pipeline events: phase
// columns written, bins generated and batch runs.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultLimit bounds Recent when no limit is given.
const DefaultLimit = 50

// Service handles journal operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new journal service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Append stores entry, stamping it with the current time if missing.
func (s *Service) Append(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Type == "" || entry.Summary == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("appending journal entry: %w", err)
	}
	s.logger.Debug("journal", "type", entry.Type, "summary", entry.Summary)
	return nil
}

// Recent lists entries newest first.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	return s.repo.List(ctx, opts)
}

// PhaseWritten records a phase column written to an event file.
func (s *Service) PhaseWritten(ctx context.Context, path, column string, rows int, provenance string) error {
	return s.Append(ctx, &Entry{
		Type:    TypePhaseWritten,
		Path:    path,
		Summary: fmt.Sprintf("wrote %s for %d events", column, rows),
		Details: provenance,
	})
}

// BinsGenerated records a bin fan-out under root.
func (s *Service) BinsGenerated(ctx context.Context, root, axisName string, names []string) error {
	details, err := Details(map[string]any{"axis": axisName, "bins": names})
	if err != nil {
		return err
	}
	return s.Append(ctx, &Entry{
		Type:    TypeBinsGenerated,
		Path:    root,
		Summary: fmt.Sprintf("generated %d %s bins", len(names), axisName),
		Details: details,
	})
}

// Details encodes v as an entry's details.
func Details(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding journal details: %w", err)
	}
	return string(b), nil
}
