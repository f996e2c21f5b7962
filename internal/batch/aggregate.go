package batch

import (
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/fit"
)

// Slot is one bin's entry in an aggregate sequence. Failed slots hold the
// zero value.
type Slot[T any] struct {
	Value  T      `json:"value"`
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Aggregate collects per-bin results in discovery order. Element i of every
// sequence belongs to Jobs[i].
type Aggregate struct {
	Jobs       []binning.Job        `json:"jobs"`
	Prefit     []Slot[fit.Snapshot] `json:"prefit"`
	Fits       []Slot[fit.Result]   `json:"fits"`
	Postfit    []Slot[fit.Snapshot] `json:"postfit"`
	FluxPoints []Slot[fit.SED]      `json:"flux_points"`
	Failures   []*BinError          `json:"-"`
}

// Len returns the number of bins recorded.
func (a *Aggregate) Len() int { return len(a.Jobs) }

// Failed returns the number of failure slots.
func (a *Aggregate) Failed() int { return len(a.Failures) }

type binResult struct {
	prefit  fit.Snapshot
	fit     fit.Result
	postfit fit.Snapshot
	sed     fit.SED
}

func (a *Aggregate) add(job binning.Job, r binResult) {
	a.Jobs = append(a.Jobs, job)
	a.Prefit = append(a.Prefit, Slot[fit.Snapshot]{Value: r.prefit})
	a.Fits = append(a.Fits, Slot[fit.Result]{Value: r.fit})
	a.Postfit = append(a.Postfit, Slot[fit.Snapshot]{Value: r.postfit})
	a.FluxPoints = append(a.FluxPoints, Slot[fit.SED]{Value: r.sed})
}

func (a *Aggregate) fail(job binning.Job, err *BinError) {
	msg := err.Error()
	a.Jobs = append(a.Jobs, job)
	a.Prefit = append(a.Prefit, Slot[fit.Snapshot]{Failed: true, Error: msg})
	a.Fits = append(a.Fits, Slot[fit.Result]{Failed: true, Error: msg})
	a.Postfit = append(a.Postfit, Slot[fit.Snapshot]{Failed: true, Error: msg})
	a.FluxPoints = append(a.FluxPoints, Slot[fit.SED]{Failed: true, Error: msg})
	a.Failures = append(a.Failures, err)
}
