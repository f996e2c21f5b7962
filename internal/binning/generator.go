// Package binning fans an analysis configuration out into one working
// directory per phase bin.
package binning

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/axis"
)

// Selection keys written into every per-bin configuration.
const (
	SelectionSection = "selection"
	PhaseMinKey      = "phasemin"
	PhaseMaxKey      = "phasemax"
)

// ConfigExt is the extension of generated configuration files.
const ConfigExt = ".yaml"

// Job is one phase bin's analysis unit.
type Job struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	EdgeMin    float64 `json:"edge_min"`
	EdgeMax    float64 `json:"edge_max"`
	Dir        string  `json:"dir"`
	ConfigPath string  `json:"config_path"`
}

// Name returns "<axis>_<min>-<max>" for a bin.
func Name(axisName string, edgeMin, edgeMax float64) string {
	return axisName + "_" + analysis.FormatFloat(edgeMin) + "-" + analysis.FormatFloat(edgeMax)
}

// Option configures a Generator.
type Option func(*Generator)

// UseAbsolutePhase writes PhaseMin/PhaseMax (edges plus the axis reference)
// instead of the reference-relative edges.
func UseAbsolutePhase() Option {
	return func(g *Generator) { g.absolute = true }
}

// Generator writes per-bin configurations.
type Generator struct {
	absolute bool
	logger   *slog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Generator{logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Plan returns the jobs Generate would create without touching the filesystem.
func (g *Generator) Plan(ax axis.Axis, root string) []Job {
	lo, hi := ax.EdgesMin(), ax.EdgesMax()
	if g.absolute {
		lo, hi = ax.PhaseMin(), ax.PhaseMax()
	}
	jobs := make([]Job, len(lo))
	for i := range lo {
		name := Name(ax.Name(), lo[i], hi[i])
		dir := filepath.Join(root, name)
		jobs[i] = Job{
			Index:      i,
			Name:       name,
			EdgeMin:    lo[i],
			EdgeMax:    hi[i],
			Dir:        dir,
			ConfigPath: filepath.Join(dir, name+ConfigExt),
		}
	}
	return jobs
}

// Generate creates one directory per bin of ax under root and writes a copy
// of base whose selection bounds are the bin's edges. Existing directories
// are reused and files rewritten, so reruns give identical results.
func (g *Generator) Generate(base *analysis.Document, ax axis.Axis, root string) ([]Job, error) {
	if base == nil {
		return nil, fmt.Errorf("generate bins: nil base config")
	}
	jobs := g.Plan(ax, root)
	for _, job := range jobs {
		if err := os.MkdirAll(job.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bin directory %s: %w", job.Dir, err)
		}
		doc := base.Clone()
		if err := doc.AddEntry(SelectionSection, PhaseMinKey, job.EdgeMin); err != nil {
			return nil, fmt.Errorf("bin %s: %w", job.Name, err)
		}
		if err := doc.AddEntry(SelectionSection, PhaseMaxKey, job.EdgeMax); err != nil {
			return nil, fmt.Errorf("bin %s: %w", job.Name, err)
		}
		if err := doc.Write(job.ConfigPath); err != nil {
			return nil, fmt.Errorf("bin %s: %w", job.Name, err)
		}
		g.logger.Debug("wrote bin config", "bin", job.Index, "dir", job.Dir)
	}
	g.logger.Info("generated phase bins", "axis", ax.Name(), "bins", len(jobs), "root", root)
	return jobs, nil
}
