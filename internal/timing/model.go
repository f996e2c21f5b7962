// Package timing turns photon arrival times into time-of-arrival records and
// evaluates pulsar timing models on them.
package timing

import (
	"context"
	"fmt"
	"math"
)

// Version identifies this timing library in provenance records.
const Version = "phasefold-timing 0.4.0"

const secondsPerDay = 86400.0

// Model is a timing model evaluated on arrival times.
type Model interface {
	// Name identifies the pulsar the model describes.
	Name() string
	// Version identifies the library evaluating the model.
	Version() string
	// Param returns the raw value of a named model parameter.
	Param(key string) (string, bool)
	// AbsPhase returns the rotational phase of each TOA relative to the
	// model's phase-zero epoch. Values are unbounded; callers normalize.
	AbsPhase(ctx context.Context, toas []TOA) ([]float64, error)
}

// Loader opens the timing model stored at path.
type Loader func(path string) (Model, error)

// SpinModel is a Taylor-series spin-down model with phase zero at TZRMJD.
// Arrival times must already be referred to the solar-system barycentre.
type SpinModel struct {
	par    *ParFile
	f0     float64
	f1     float64
	f2     float64
	pepoch float64
	tzrmjd float64
}

// LoadSpinModel reads a par file into a SpinModel.
func LoadSpinModel(path string) (Model, error) {
	par, err := ReadParFile(path)
	if err != nil {
		return nil, err
	}
	return NewSpinModel(par)
}

// NewSpinModel builds a model from parsed parameters. F0 and PEPOCH are
// required; F1 and F2 default to zero and TZRMJD to PEPOCH.
func NewSpinModel(par *ParFile) (*SpinModel, error) {
	m := &SpinModel{par: par}
	var err error
	if m.f0, err = par.Float("F0"); err != nil {
		return nil, fmt.Errorf("spin model: %w", err)
	}
	if m.pepoch, err = par.Float("PEPOCH"); err != nil {
		return nil, fmt.Errorf("spin model: %w", err)
	}
	if m.f1, err = optionalFloat(par, "F1", 0); err != nil {
		return nil, fmt.Errorf("spin model: %w", err)
	}
	if m.f2, err = optionalFloat(par, "F2", 0); err != nil {
		return nil, fmt.Errorf("spin model: %w", err)
	}
	if m.tzrmjd, err = optionalFloat(par, "TZRMJD", m.pepoch); err != nil {
		return nil, fmt.Errorf("spin model: %w", err)
	}
	return m, nil
}

func optionalFloat(par *ParFile, key string, def float64) (float64, error) {
	if _, ok := par.Param(key); !ok {
		return def, nil
	}
	return par.Float(key)
}

// Name returns PSRJ, or the par file path when it is absent.
func (m *SpinModel) Name() string {
	if v, ok := m.par.Param("PSRJ"); ok {
		return v
	}
	return m.par.Path
}

// Version returns the library version.
func (m *SpinModel) Version() string { return Version }

// Param returns the raw value of key.
func (m *SpinModel) Param(key string) (string, bool) { return m.par.Param(key) }

// AbsPhase returns the phase elapsed since TZRMJD, reduced to its signed
// fractional part.
func (m *SpinModel) AbsPhase(ctx context.Context, toas []TOA) ([]float64, error) {
	ref := m.rotations(m.tzrmjd)
	phases := make([]float64, len(toas))
	for i, toa := range toas {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		phases[i] = math.Mod(m.rotations(toa.MJD)-ref, 1)
	}
	return phases, nil
}

func (m *SpinModel) rotations(mjd float64) float64 {
	dt := (mjd - m.pepoch) * secondsPerDay
	return dt * (m.f0 + dt*(m.f1/2+dt*m.f2/6))
}
