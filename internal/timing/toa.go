package timing

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rpggio/phasefold/internal/events"
)

// TOA is one photon arrival time.
type TOA struct {
	// MJD is the arrival time in barycentric dynamical time.
	MJD float64
	// Observatory is the registry id the arrival was measured by.
	Observatory string
	// Weight is the photon probability weight, 1 when no weight column is used.
	Weight float64
	// Separation is the angle to the target in degrees, NaN without a target.
	Separation float64
}

// BuildOptions carries the physical-model choices for a TOA build.
type BuildOptions struct {
	// Ephem names the solar-system ephemeris, "DE421" by default.
	Ephem       string
	IncludeBIPM bool
	IncludeGPS  bool
	Planets     bool
	// WeightColumn names an event column holding photon weights.
	WeightColumn string
	// Target overrides the sky position used for weight computation.
	Target *events.SkyCoord
}

// DefaultEphem is the solar-system ephemeris used when none is given.
const DefaultEphem = "DE421"

// WithDefaults fills unset options.
func (o BuildOptions) WithDefaults() BuildOptions {
	if o.Ephem == "" {
		o.Ephem = DefaultEphem
	}
	return o
}

// Builder converts an event list into TOAs for a registered observatory.
type Builder interface {
	Build(ctx context.Context, ev *events.EventList, obs Observatory, opts BuildOptions) ([]TOA, error)
}

// FermiBuilder builds TOAs from Fermi-LAT event lists whose TIME column has
// already been barycentred (TIMEREF = SOLARSYSTEM). It applies no clock,
// ephemeris or relativistic correction itself.
type FermiBuilder struct{}

var _ Builder = FermiBuilder{}

// Build implements Builder.
func (FermiBuilder) Build(ctx context.Context, ev *events.EventList, obs Observatory, opts BuildOptions) ([]TOA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, _ := ev.Table.Header.Get("TIMEREF")
	if !strings.EqualFold(strings.TrimSpace(ref), "SOLARSYSTEM") {
		return nil, fmt.Errorf("%w: %s has TIMEREF %q", ErrNotBarycentered, ev.Filename, ref)
	}
	times, err := ev.Times()
	if err != nil {
		return nil, fmt.Errorf("reading times: %w", err)
	}

	var weights []float64
	if opts.WeightColumn != "" {
		col, err := ev.Table.Column(opts.WeightColumn)
		if err != nil {
			return nil, fmt.Errorf("reading weights: %w", err)
		}
		weights = col.Values
	}

	var ra, dec []float64
	if opts.Target != nil {
		raCol, err := ev.Table.Column("RA")
		if err != nil {
			return nil, fmt.Errorf("reading event positions: %w", err)
		}
		decCol, err := ev.Table.Column("DEC")
		if err != nil {
			return nil, fmt.Errorf("reading event positions: %w", err)
		}
		ra, dec = raCol.Values, decCol.Values
	}

	mjdref := ev.MJDRef()
	toas := make([]TOA, len(times))
	for i, t := range times {
		toa := TOA{
			MJD:         mjdref + t/secondsPerDay,
			Observatory: obs.ID,
			Weight:      1,
			Separation:  math.NaN(),
		}
		if weights != nil {
			toa.Weight = weights[i]
		}
		if ra != nil {
			toa.Separation = opts.Target.Separation(events.SkyCoord{RA: ra[i], Dec: dec[i]})
		}
		toas[i] = toa
	}
	return toas, nil
}
