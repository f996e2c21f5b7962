package phase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rpggio/phasefold/internal/events"
)

// DefaultColumn is the column phases are written to when none is named.
const DefaultColumn = "PULSE_PHASE"

// WriteRequest describes where a phase column goes.
type WriteRequest struct {
	// Source is the event file the phases were computed from.
	Source string
	// Target receives the updated table. Empty or equal to Source writes in place.
	Target string
	// Column defaults to DefaultColumn.
	Column string
	// KeepExisting refuses to replace an existing column or an existing
	// Target file. By default both are replaced.
	KeepExisting bool
	// Checksum records a content digest in the written header.
	Checksum bool
}

// InPlace reports whether the request updates Source itself.
func (r WriteRequest) InPlace() bool {
	return r.Target == "" || filepath.Clean(r.Target) == filepath.Clean(r.Source)
}

// Writer persists phase results into event containers. Callers must not
// write the same container from two writers at once.
type Writer struct {
	store  events.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a writer over store.
func NewWriter(store events.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{store: store, logger: logger, now: time.Now}
}

// Write adds res as a column of the Source table, together with the
// provenance card, and stores the result. When the column exists and
// KeepExisting is set nothing is written and ErrColumnExists is returned.
// It returns the provenance as recorded.
func (w *Writer) Write(ctx context.Context, res *Result, req WriteRequest) (Provenance, error) {
	if res == nil {
		return Provenance{}, fmt.Errorf("%w: nil result", ErrLengthMismatch)
	}
	column := req.Column
	if column == "" {
		column = DefaultColumn
	}

	table, err := w.store.Read(ctx, req.Source)
	if err != nil {
		return Provenance{}, fmt.Errorf("reading %s: %w", req.Source, err)
	}
	if len(res.Phases) != table.NumRows() {
		return Provenance{}, fmt.Errorf("%w: %d phases for %d events in %s", ErrLengthMismatch, len(res.Phases), table.NumRows(), req.Source)
	}

	switch {
	case !table.HasColumn(column):
		w.logger.Info("writing phase column", "column", column, "file", req.Source)
	case !req.KeepExisting:
		w.logger.Info("phase column exists, overwriting", "column", column, "file", req.Source)
	default:
		w.logger.Info("phase column exists and is kept", "column", column, "file", req.Source)
		return Provenance{}, fmt.Errorf("%w: %s in %s", ErrColumnExists, column, req.Source)
	}

	prov := res.Provenance
	prov.Column = column
	date := MJD(w.now())
	prov.Date = &date
	encoded, err := prov.Encode()
	if err != nil {
		return Provenance{}, err
	}

	updated := table.Clone()
	if err := updated.SetColumn(events.Column{Name: column, Format: "D", Values: res.Phases}); err != nil {
		return Provenance{}, fmt.Errorf("setting column %s: %w", column, err)
	}
	updated.Header.Set(ProvenanceKey, encoded, "pulse phase provenance")

	target := req.Target
	if req.InPlace() {
		target = req.Source
	}
	opts := events.WriteOptions{
		InPlace:   req.InPlace(),
		Overwrite: !req.KeepExisting,
		Checksum:  req.Checksum,
	}
	if err := w.store.Write(ctx, target, updated, opts); err != nil {
		return Provenance{}, fmt.Errorf("writing %s: %w", target, err)
	}
	return prov, nil
}
