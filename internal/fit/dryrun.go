package fit

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// DryRun is an in-process engine that fits nothing. It keeps spectral
// parameters set on it, reports a converged fit and writes the ROI as JSON,
// so bin layouts and plans can be exercised without a likelihood backend.
type DryRun struct {
	dir        string
	configPath string

	mu     sync.Mutex
	params map[string]map[string]float64
	free   map[string]bool
	calls  []string
}

var _ Engine = (*DryRun)(nil)

// NewDryRun opens a dry-run engine for one bin.
func NewDryRun(dir, configPath string) *DryRun {
	return &DryRun{
		dir:        dir,
		configPath: configPath,
		params:     map[string]map[string]float64{},
		free:       map[string]bool{},
	}
}

// DryRunFactory opens DryRun engines.
var DryRunFactory Factory = FactoryFunc(func(_ context.Context, dir, configPath string) (Engine, error) {
	return NewDryRun(dir, configPath), nil
})

// Calls returns the engine methods invoked so far, in order.
func (d *DryRun) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *DryRun) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *DryRun) Setup(ctx context.Context) error {
	d.record("setup")
	if _, err := os.Stat(d.configPath); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return ctx.Err()
}

func (d *DryRun) ROI(_ context.Context, name string) (Snapshot, error) {
	d.record("roi")
	d.mu.Lock()
	defer d.mu.Unlock()
	params := map[string]float64{"Prefactor": 1e-11, "Index": 2, "Scale": 1000}
	maps.Copy(params, d.params[name])
	return Snapshot{Name: name, SpectrumType: "PowerLaw", Params: params}, nil
}

func (d *DryRun) SetSpectralPars(_ context.Context, name string, pars map[string]float64) error {
	d.record("set_spectral_pars")
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.params[name] == nil {
		d.params[name] = map[string]float64{}
	}
	maps.Copy(d.params[name], pars)
	return nil
}

func (d *DryRun) FreeSources(_ context.Context, distance float64, pars []string) error {
	d.record("free_sources")
	if distance < 0 {
		return fmt.Errorf("free sources: negative distance %v", distance)
	}
	return nil
}

func (d *DryRun) FreeSource(_ context.Context, name string) error {
	d.record("free_source")
	d.mu.Lock()
	d.free[name] = true
	d.mu.Unlock()
	return nil
}

func (d *DryRun) Fit(ctx context.Context) (Result, error) {
	d.record("fit")
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{FitQuality: 3, Converged: true}, nil
}

func (d *DryRun) WriteROI(ctx context.Context, filename string) error {
	d.record("write_roi")
	d.mu.Lock()
	data, err := json.MarshalIndent(d.params, "", "  ")
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dir, filename), data, 0o644)
}

func (d *DryRun) SED(_ context.Context, name, sedType string) (SED, error) {
	d.record("sed")
	return SED{Name: name, Type: sedType}, nil
}

func (d *DryRun) Close() error {
	d.record("close")
	return nil
}
