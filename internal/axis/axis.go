// Package axis models a one-dimensional binning of rotational phase into
// ordered, non-overlapping intervals measured from a reference phase.
package axis

import (
	"fmt"
	"math"
)

// DefaultName labels an axis when no name is given.
const DefaultName = "phase"

// Interval is one bin of an axis, in edge (reference-relative) coordinates.
type Interval struct {
	Index int
	Min   float64
	Max   float64
}

// Axis is an immutable set of phase intervals. The zero value is not usable;
// build one with New, FromEdges or FromBounds.
type Axis struct {
	edgesMin  []float64
	edgesMax  []float64
	reference float64
	norm      float64
	name      string
}

// Option customizes an Axis at construction.
type Option func(*Axis)

// WithName sets the axis label used in bin names.
func WithName(name string) Option {
	return func(a *Axis) { a.name = name }
}

// WithNorm sets the phase normalization (1 for a full rotation).
func WithNorm(norm float64) Option {
	return func(a *Axis) { a.norm = norm }
}

// New builds an axis from reference-relative edges.
func New(edgesMin, edgesMax []float64, reference float64, opts ...Option) (Axis, error) {
	a := Axis{
		edgesMin:  append([]float64(nil), edgesMin...),
		edgesMax:  append([]float64(nil), edgesMax...),
		reference: reference,
		norm:      1,
		name:      DefaultName,
	}
	for _, opt := range opts {
		opt(&a)
	}
	if err := a.validate(); err != nil {
		return Axis{}, err
	}
	return a, nil
}

// FromEdges builds an axis from absolute phase bounds. The first lower bound
// becomes the reference, so the resulting edges start at zero.
func FromEdges(phaseMin, phaseMax []float64, opts ...Option) (Axis, error) {
	if len(phaseMin) == 0 {
		return Axis{}, fmt.Errorf("%w: no intervals", ErrInvalidAxis)
	}
	reference := phaseMin[0]
	edgesMin := make([]float64, len(phaseMin))
	for i, v := range phaseMin {
		edgesMin[i] = v - reference
	}
	edgesMax := make([]float64, len(phaseMax))
	for i, v := range phaseMax {
		edgesMax[i] = v - reference
	}
	return New(edgesMin, edgesMax, reference, opts...)
}

// FromBounds splits [phaseMin, phaseMax] into nbin contiguous bins of equal width.
func FromBounds(phaseMin, phaseMax float64, nbin int, opts ...Option) (Axis, error) {
	if nbin <= 0 {
		return Axis{}, fmt.Errorf("%w: bin count %d must be positive", ErrInvalidAxis, nbin)
	}
	if !(phaseMax > phaseMin) {
		return Axis{}, fmt.Errorf("%w: upper bound %v must exceed lower bound %v", ErrInvalidAxis, phaseMax, phaseMin)
	}

	delta := phaseMax - phaseMin
	step := 1 / float64(nbin)
	points := make([]float64, nbin+1)
	for i := range points {
		frac := float64(i) * step
		if i == nbin {
			frac = 1
		}
		points[i] = phaseMin + delta*frac
	}
	return FromEdges(points[:nbin], points[1:], opts...)
}

func (a Axis) validate() error {
	if len(a.edgesMin) == 0 {
		return fmt.Errorf("%w: no intervals", ErrInvalidAxis)
	}
	if len(a.edgesMin) != len(a.edgesMax) {
		return fmt.Errorf("%w: %d lower edges but %d upper edges", ErrInvalidAxis, len(a.edgesMin), len(a.edgesMax))
	}
	if !(a.norm > 0) || math.IsInf(a.norm, 0) {
		return fmt.Errorf("%w: normalization %v must be positive", ErrInvalidAxis, a.norm)
	}
	if math.IsNaN(a.reference) || math.IsInf(a.reference, 0) {
		return fmt.Errorf("%w: reference phase %v", ErrInvalidAxis, a.reference)
	}
	for i := range a.edgesMin {
		lo, hi := a.edgesMin[i], a.edgesMax[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return fmt.Errorf("%w: bin %d has non-finite edges", ErrInvalidAxis, i)
		}
		if lo > hi {
			return fmt.Errorf("%w: bin %d lower edge %v exceeds upper edge %v", ErrInvalidAxis, i, lo, hi)
		}
		if i > 0 && lo < a.edgesMax[i-1] {
			return fmt.Errorf("%w: bin %d starts at %v before bin %d ends at %v", ErrOverlap, i, lo, i-1, a.edgesMax[i-1])
		}
	}
	return nil
}

// Name returns the axis label.
func (a Axis) Name() string { return a.name }

// Norm returns the phase normalization.
func (a Axis) Norm() float64 { return a.norm }

// Reference returns the phase the edges are measured from.
func (a Axis) Reference() float64 { return a.reference }

// NBin returns the number of intervals.
func (a Axis) NBin() int { return len(a.edgesMin) }

// EdgesMin returns a copy of the lower edges.
func (a Axis) EdgesMin() []float64 { return append([]float64(nil), a.edgesMin...) }

// EdgesMax returns a copy of the upper edges.
func (a Axis) EdgesMax() []float64 { return append([]float64(nil), a.edgesMax...) }

// IsContiguous reports whether each interval starts exactly where the previous one ends.
func (a Axis) IsContiguous() bool {
	for i := 1; i < len(a.edgesMin); i++ {
		if a.edgesMin[i] != a.edgesMax[i-1] {
			return false
		}
	}
	return true
}

// Edges returns the NBin+1 boundary points of a contiguous axis.
func (a Axis) Edges() ([]float64, error) {
	if !a.IsContiguous() {
		return nil, ErrNotContiguous
	}
	edges := make([]float64, 0, len(a.edgesMin)+1)
	edges = append(edges, a.edgesMin...)
	return append(edges, a.edgesMax[len(a.edgesMax)-1]), nil
}

// PhaseEdges returns Edges shifted by the reference phase.
func (a Axis) PhaseEdges() ([]float64, error) {
	edges, err := a.Edges()
	if err != nil {
		return nil, err
	}
	return shift(edges, a.reference), nil
}

// PhaseMin returns the absolute lower bounds.
func (a Axis) PhaseMin() []float64 { return shift(a.edgesMin, a.reference) }

// PhaseMax returns the absolute upper bounds.
func (a Axis) PhaseMax() []float64 { return shift(a.edgesMax, a.reference) }

// BinWidth returns the width of every interval.
func (a Axis) BinWidth() []float64 {
	lo, hi := a.PhaseMin(), a.PhaseMax()
	width := make([]float64, len(lo))
	for i := range lo {
		width[i] = hi[i] - lo[i]
	}
	return width
}

// Center returns the midpoint of every interval in edge coordinates.
func (a Axis) Center() []float64 {
	width := a.BinWidth()
	center := make([]float64, len(width))
	for i := range width {
		center[i] = a.edgesMin[i] + 0.5*width[i]
	}
	return center
}

// Bin returns interval i in edge coordinates.
func (a Axis) Bin(i int) Interval {
	return Interval{Index: i, Min: a.edgesMin[i], Max: a.edgesMax[i]}
}

// Bins returns every interval in axis order.
func (a Axis) Bins() []Interval {
	bins := make([]Interval, len(a.edgesMin))
	for i := range bins {
		bins[i] = a.Bin(i)
	}
	return bins
}

func shift(values []float64, by float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v + by
	}
	return out
}
