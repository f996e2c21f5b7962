// Package phase folds photon arrival times onto a pulsar's rotational phase
// and persists the result as an event column with a provenance record.
package phase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/rpggio/phasefold/internal/events"
	"github.com/rpggio/phasefold/internal/timing"
)

// Result holds one normalized phase per event and the record of how it was made.
type Result struct {
	Phases     []float64
	Provenance Provenance
}

// ComputeRequest describes one phase computation.
type ComputeRequest struct {
	Observation   *events.Observation
	EphemerisFile string
	Options       timing.BuildOptions
	// Offset is added to every raw phase before normalization.
	Offset *float64
}

// Computer evaluates a timing model on the events of an observation.
type Computer struct {
	registry *timing.Registry
	builder  timing.Builder
	loader   timing.Loader
	logger   *slog.Logger
}

// NewComputer creates a phase computer. A nil registry selects
// timing.DefaultRegistry, a nil builder timing.FermiBuilder and a nil
// loader timing.LoadSpinModel.
func NewComputer(registry *timing.Registry, builder timing.Builder, loader timing.Loader, logger *slog.Logger) *Computer {
	if registry == nil {
		registry = timing.DefaultRegistry
	}
	if builder == nil {
		builder = timing.FermiBuilder{}
	}
	if loader == nil {
		loader = timing.LoadSpinModel
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Computer{registry: registry, builder: builder, loader: loader, logger: logger}
}

// Compute returns the phase of every event in req.Observation. The
// observation's spacecraft file replaces any previous registration of the
// Fermi observatory; the TOA build runs while the registry is held.
func (c *Computer) Compute(ctx context.Context, req ComputeRequest) (*Result, error) {
	if err := req.Observation.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(req.EphemerisFile)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrEphemerisNotFound, req.EphemerisFile)
	}
	model, err := c.loader(req.EphemerisFile)
	if err != nil {
		return nil, fmt.Errorf("loading timing model: %w", err)
	}

	opts := req.Options.WithDefaults()
	obs := req.Observation
	var toas []timing.TOA
	err = c.registry.Use(timing.FermiObservatory, obs.Spacecraft.Filename, func(o timing.Observatory) error {
		var buildErr error
		toas, buildErr = c.builder.Build(ctx, obs.Events, o, opts)
		return buildErr
	})
	if err != nil {
		return nil, fmt.Errorf("building TOAs for %s: %w", obs.Events.Filename, err)
	}

	raw, err := model.AbsPhase(ctx, toas)
	if err != nil {
		return nil, fmt.Errorf("evaluating phase: %w", err)
	}
	if len(raw) != len(toas) {
		return nil, fmt.Errorf("%w: model returned %d phases for %d TOAs", ErrLengthMismatch, len(raw), len(toas))
	}

	offset := 0.0
	if req.Offset != nil {
		offset = *req.Offset
	}
	phases := make([]float64, len(raw))
	for i, p := range raw {
		p += offset
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: event %d", ErrNonFinitePhase, i)
		}
		phases[i] = Normalize(p)
	}

	c.logger.Debug("computed phases",
		"events", obs.Events.Filename,
		"spacecraft", obs.Spacecraft.Filename,
		"count", len(phases),
		"ephem", opts.Ephem)

	return &Result{
		Phases:     phases,
		Provenance: newProvenance(model, req.EphemerisFile, req.Offset, c.logger),
	}, nil
}

// Normalize folds p into [0, 1).
func Normalize(p float64) float64 {
	f := math.Mod(p, 1)
	if f < 0 {
		f += 1
	}
	if f >= 1 {
		return 0
	}
	return f
}
