// Package fit defines the likelihood-fit engine a batch drives once per
// phase bin.
package fit

import "context"

// Snapshot is the parameter state of one ROI source.
type Snapshot struct {
	Name         string             `json:"name"`
	SpectrumType string             `json:"spectrum_type,omitempty"`
	Params       map[string]float64 `json:"params"`
	Errors       map[string]float64 `json:"errors,omitempty"`
	TS           *float64           `json:"ts,omitempty"`
	NPred        *float64           `json:"npred,omitempty"`
}

// Result summarizes one likelihood fit.
type Result struct {
	// FitQuality follows the MINUIT convention; 3 is a full accurate covariance.
	FitQuality int     `json:"fit_quality"`
	LogLike    float64 `json:"loglike"`
	EDM        float64 `json:"edm"`
	Converged  bool    `json:"converged"`
}

// SED holds the flux points computed for a source.
type SED struct {
	Name    string    `json:"name"`
	Type    string    `json:"sed_type,omitempty"`
	EMin    []float64 `json:"e_min"`
	EMax    []float64 `json:"e_max"`
	ERef    []float64 `json:"e_ref"`
	Flux    []float64 `json:"flux"`
	FluxErr []float64 `json:"flux_err"`
	TS      []float64 `json:"ts"`
}

// Engine is one bin's fit session.
type Engine interface {
	Setup(ctx context.Context) error
	// ROI returns the current parameters of source name.
	ROI(ctx context.Context, name string) (Snapshot, error)
	SetSpectralPars(ctx context.Context, name string, pars map[string]float64) error
	// FreeSources frees pars of every source within distance degrees.
	FreeSources(ctx context.Context, distance float64, pars []string) error
	FreeSource(ctx context.Context, name string) error
	Fit(ctx context.Context) (Result, error)
	WriteROI(ctx context.Context, filename string) error
	SED(ctx context.Context, name, sedType string) (SED, error)
	Close() error
}

// Factory opens an engine for the configuration at configPath, rooted at dir.
type Factory interface {
	Open(ctx context.Context, dir, configPath string) (Engine, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, dir, configPath string) (Engine, error)

// Open implements Factory.
func (f FactoryFunc) Open(ctx context.Context, dir, configPath string) (Engine, error) {
	return f(ctx, dir, configPath)
}
