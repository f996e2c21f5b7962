// Package pipeline ties the phase, binning and batch stages together behind
// the operations the command line and the MCP server expose.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/axis"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/events"
	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/phase"
	"github.com/rpggio/phasefold/internal/timing"
	"gopkg.in/yaml.v3"
)

// Journal receives notes about completed stages.
type Journal interface {
	PhaseWritten(ctx context.Context, path, column string, rows int, provenance string) error
	BinsGenerated(ctx context.Context, root, axisName string, names []string) error
}

// Deps are the collaborators of a Service. Store and Engines are required
// for Fold and RunBatch respectively; the rest are optional.
type Deps struct {
	Store     events.Store
	Registry  *timing.Registry
	Builder   timing.Builder
	Loader    timing.Loader
	Engines   fit.Factory
	Workspace batch.Workspace
	Recorder  batch.Recorder
	Journal   Journal
	Logger    *slog.Logger
}

// Service runs pipeline stages.
type Service struct {
	deps     Deps
	computer *phase.Computer
	writer   *phase.Writer
	logger   *slog.Logger
}

// NewService creates a pipeline service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		deps:     deps,
		computer: phase.NewComputer(deps.Registry, deps.Builder, deps.Loader, logger),
		writer:   phase.NewWriter(deps.Store, logger),
		logger:   logger,
	}
}

// FoldRequest writes a phase column for one or more event files sharing a
// spacecraft file.
type FoldRequest struct {
	EventFiles     []string
	SpacecraftFile string
	EphemerisFile  string
	// Output names the target file. It is only valid with a single event file;
	// empty writes in place.
	Output string
	Column string
	// KeepExisting refuses to replace an existing column or output file.
	KeepExisting bool
	Checksum     bool
	Offset       *float64
	Options      timing.BuildOptions
}

// Folded reports the column written to one event file.
type Folded struct {
	Source     string           `json:"source"`
	Target     string           `json:"target"`
	Rows       int              `json:"rows"`
	Provenance phase.Provenance `json:"provenance"`
}

// Fold computes and writes phases for every event file in order, stopping
// at the first failure. Files written before the failure stay written.
func (s *Service) Fold(ctx context.Context, req FoldRequest) ([]Folded, error) {
	if s.deps.Store == nil {
		return nil, errors.New("fold: no event store configured")
	}
	if len(req.EventFiles) == 0 {
		return nil, fmt.Errorf("%w: no event files", events.ErrInvalidObservation)
	}
	if req.Output != "" && len(req.EventFiles) > 1 {
		return nil, errors.New("fold: an output file needs exactly one event file")
	}
	obs, err := events.FromFiles(ctx, s.deps.Store, req.EventFiles, req.SpacecraftFile)
	if err != nil {
		return nil, err
	}

	out := make([]Folded, 0, len(obs))
	for _, o := range obs {
		res, err := s.computer.Compute(ctx, phase.ComputeRequest{
			Observation:   o,
			EphemerisFile: req.EphemerisFile,
			Options:       req.Options,
			Offset:        req.Offset,
		})
		if err != nil {
			return out, err
		}
		wr := phase.WriteRequest{
			Source:       o.Events.Filename,
			Target:       req.Output,
			Column:       req.Column,
			KeepExisting: req.KeepExisting,
			Checksum:     req.Checksum,
		}
		prov, err := s.writer.Write(ctx, res, wr)
		if err != nil {
			return out, err
		}
		target := wr.Target
		if wr.InPlace() {
			target = wr.Source
		}
		folded := Folded{Source: wr.Source, Target: target, Rows: len(res.Phases), Provenance: prov}
		out = append(out, folded)
		s.notePhase(ctx, folded)
	}
	return out, nil
}

func (s *Service) notePhase(ctx context.Context, f Folded) {
	if s.deps.Journal == nil {
		return
	}
	encoded, err := f.Provenance.Encode()
	if err != nil {
		s.logger.Warn("encoding provenance for journal", "error", err)
		return
	}
	if err := s.deps.Journal.PhaseWritten(ctx, f.Target, f.Provenance.Column, f.Rows, encoded); err != nil {
		s.logger.Warn("journaling phase write", "path", f.Target, "error", err)
	}
}

// AxisSpec describes an axis either by bounds and bin count or by explicit
// edges. Edges win when both are given.
type AxisSpec struct {
	Name     string    `json:"name,omitempty" yaml:"name"`
	PhaseMin float64   `json:"phase_min,omitempty" yaml:"phase_min"`
	PhaseMax float64   `json:"phase_max,omitempty" yaml:"phase_max"`
	NBins    int       `json:"nbins,omitempty" yaml:"nbins"`
	EdgesMin []float64 `json:"edges_min,omitempty" yaml:"edges_min"`
	EdgesMax []float64 `json:"edges_max,omitempty" yaml:"edges_max"`
	Norm     float64   `json:"norm,omitempty" yaml:"norm"`
}

// Build constructs the axis.
func (a AxisSpec) Build() (axis.Axis, error) {
	var opts []axis.Option
	if a.Name != "" {
		opts = append(opts, axis.WithName(a.Name))
	}
	if a.Norm != 0 {
		opts = append(opts, axis.WithNorm(a.Norm))
	}
	if len(a.EdgesMin) > 0 || len(a.EdgesMax) > 0 {
		return axis.FromEdges(a.EdgesMin, a.EdgesMax, opts...)
	}
	return axis.FromBounds(a.PhaseMin, a.PhaseMax, a.NBins, opts...)
}

// GenerateRequest fans a base configuration out into one directory per bin.
type GenerateRequest struct {
	ConfigPath string
	// Root defaults to the directory of ConfigPath.
	Root     string
	Axis     AxisSpec
	Absolute bool
}

// GenerateBins writes the per-bin configurations and returns their jobs.
func (s *Service) GenerateBins(ctx context.Context, req GenerateRequest) ([]binning.Job, error) {
	ax, err := req.Axis.Build()
	if err != nil {
		return nil, err
	}
	base, err := analysis.Load(req.ConfigPath)
	if err != nil {
		return nil, err
	}
	root := req.Root
	if root == "" {
		root = filepath.Dir(req.ConfigPath)
	}
	var opts []binning.Option
	if req.Absolute {
		opts = append(opts, binning.UseAbsolutePhase())
	}
	jobs, err := binning.NewGenerator(s.logger, opts...).Generate(base, ax, root)
	if err != nil {
		return nil, err
	}

	if s.deps.Journal != nil {
		names := make([]string, len(jobs))
		for i, job := range jobs {
			names[i] = job.Name
		}
		if err := s.deps.Journal.BinsGenerated(ctx, root, ax.Name(), names); err != nil {
			s.logger.Warn("journaling bin generation", "root", root, "error", err)
		}
	}
	return jobs, nil
}

// PreviewBins returns the jobs GenerateBins would write, without touching disk.
func (s *Service) PreviewBins(spec AxisSpec, root string, absolute bool) (axis.Axis, []binning.Job, error) {
	ax, err := spec.Build()
	if err != nil {
		return axis.Axis{}, nil, err
	}
	var opts []binning.Option
	if absolute {
		opts = append(opts, binning.UseAbsolutePhase())
	}
	return ax, binning.NewGenerator(s.logger, opts...).Plan(ax, root), nil
}

// BatchRequest runs the fit over every bin directory under Root.
type BatchRequest struct {
	Root      string
	DirPrefix string
	Pattern   string
	// PlanPath names a YAML analysis plan; empty uses analysis.DefaultPlan.
	PlanPath string
	// Plan is used as is when PlanPath is empty and Plan is non-nil.
	Plan *analysis.Plan
	// Source overrides the plan's source name.
	Source string
}

// RunBatch discovers and fits the bins under req.Root. On a bin failure
// the partial aggregate is returned with the error.
func (s *Service) RunBatch(ctx context.Context, req BatchRequest) (*batch.Aggregate, error) {
	if s.deps.Engines == nil {
		return nil, errors.New("run batch: no fit engine configured")
	}
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	if req.Source != "" {
		plan.SourceName = req.Source
	}
	var opts []batch.Option
	if s.deps.Workspace != nil {
		opts = append(opts, batch.WithWorkspace(s.deps.Workspace))
	}
	if s.deps.Recorder != nil {
		opts = append(opts, batch.WithRecorder(s.deps.Recorder))
	}
	runner := batch.NewRunner(plan, s.deps.Engines, s.logger, opts...)
	return runner.RunDir(ctx, req.Root, req.DirPrefix, req.Pattern)
}

func (s *Service) plan(req BatchRequest) (analysis.Plan, error) {
	switch {
	case req.PlanPath != "":
		data, err := os.ReadFile(req.PlanPath)
		if err != nil {
			return analysis.Plan{}, fmt.Errorf("read analysis plan: %w", err)
		}
		plan := analysis.DefaultPlan()
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return analysis.Plan{}, fmt.Errorf("%w: %s: %v", analysis.ErrInvalidPlan, req.PlanPath, err)
		}
		return plan, nil
	case req.Plan != nil:
		return *req.Plan, nil
	default:
		return analysis.DefaultPlan(), nil
	}
}
