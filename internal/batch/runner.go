// Package batch runs one likelihood fit per phase bin and collects the
// results in bin order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/fit"
)

// Diffuse components freed by FreeDiffuse.
const (
	GalacticDiffuse  = "galdiff"
	IsotropicDiffuse = "isodiff"
)

// Outcome is what a Recorder learns about one bin.
type Outcome struct {
	Job    binning.Job
	Result fit.Result
	Err    *BinError
}

// Recorder persists the progress of a run.
type Recorder interface {
	StartRun(ctx context.Context, root string, jobs []binning.Job) (string, error)
	RecordBin(ctx context.Context, runID string, outcome Outcome) error
	FinishRun(ctx context.Context, runID string, agg *Aggregate, runErr error) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkspace sets how bins are rooted. The default is RootedWorkspace.
func WithWorkspace(ws Workspace) Option {
	return func(r *Runner) { r.workspace = ws }
}

// WithRecorder records every run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// Runner drives a fit engine over each bin.
type Runner struct {
	plan      analysis.Plan
	factory   fit.Factory
	workspace Workspace
	recorder  Recorder
	logger    *slog.Logger

	mu   sync.Mutex
	last *Aggregate
}

// NewRunner creates a runner applying plan to every bin.
func NewRunner(plan analysis.Plan, factory fit.Factory, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		plan:      plan,
		factory:   factory,
		workspace: RootedWorkspace{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Aggregate returns the aggregate of the last run, or nil before any run.
func (r *Runner) Aggregate() *Aggregate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// RunDir discovers the bins under root and runs them.
func (r *Runner) RunDir(ctx context.Context, root, dirPrefix, pattern string) (*Aggregate, error) {
	jobs, err := Discover(root, dirPrefix, pattern)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, root, jobs)
}

// Run fits every job in order. By default the first failing bin stops the
// run and is left out of the aggregate; with ContinueOnError (or
// ContinueOnTimeout for a timed-out bin) it gets a failure slot instead. A
// workspace failure always stops the run. The aggregate is returned in both
// cases.
func (r *Runner) Run(ctx context.Context, root string, jobs []binning.Job) (*Aggregate, error) {
	if err := r.plan.Validate(); err != nil {
		return nil, err
	}
	if r.factory == nil {
		return nil, errors.New("run batch: no fit engine configured")
	}

	agg := &Aggregate{}
	runID := r.startRun(ctx, root, jobs)
	r.logger.Info("batch started", "run", runID, "bins", len(jobs), "source", r.plan.SourceName)

	var runErr error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res, binErr := r.runBin(ctx, job)
		if binErr == nil {
			agg.add(job, res)
			r.recordBin(ctx, runID, Outcome{Job: job, Result: res.fit})
			r.logger.Info("bin finished", "bin", job.Index, "dir", job.Dir, "fit_quality", res.fit.FitQuality)
			continue
		}

		r.logger.Error("bin failed", "bin", job.Index, "dir", job.Dir, "stage", binErr.Stage, "error", binErr.Err)
		r.recordBin(ctx, runID, Outcome{Job: job, Err: binErr})
		if !r.keepGoing(ctx, binErr) {
			runErr = binErr
			break
		}
		agg.fail(job, binErr)
	}

	r.mu.Lock()
	r.last = agg
	r.mu.Unlock()

	r.finishRun(ctx, runID, agg, runErr)
	r.logger.Info("batch finished", "run", runID, "bins", agg.Len(), "failed", agg.Failed())
	return agg, runErr
}

func (r *Runner) keepGoing(ctx context.Context, err *BinError) bool {
	if ctx.Err() != nil || errors.Is(err, ErrWorkspace) {
		return false
	}
	if err.Timeout() && r.plan.Batch.ContinueOnTimeout {
		return true
	}
	return r.plan.Batch.ContinueOnError
}

func (r *Runner) runBin(ctx context.Context, job binning.Job) (res binResult, binErr *BinError) {
	fail := func(stage string, err error) *BinError {
		return &BinError{Index: job.Index, Dir: job.Dir, Stage: stage, Err: err}
	}

	leave, err := r.workspace.Enter(job.Dir)
	if err != nil {
		return res, fail(StageWorkspace, err)
	}
	defer func() {
		if err := leave(); err != nil && binErr == nil {
			binErr = fail(StageWorkspace, err)
		}
	}()

	if r.plan.Batch.BinTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.plan.Batch.BinTimeout)
		defer cancel()
	}

	log := r.logger.With("bin", job.Index, "dir", job.Dir)
	log.Debug("opening engine", "stage", StageOpen, "config", job.ConfigPath)
	eng, err := r.factory.Open(ctx, job.Dir, job.ConfigPath)
	if err != nil {
		return res, fail(StageOpen, err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("closing engine", "error", err)
		}
	}()

	res, stage, err := r.fitBin(ctx, eng, log)
	if err != nil {
		return binResult{}, fail(stage, err)
	}
	return res, nil
}

func (r *Runner) fitBin(ctx context.Context, eng fit.Engine, log *slog.Logger) (binResult, string, error) {
	var res binResult
	source := r.plan.SourceName

	log.Debug("setting up", "stage", StageSetup)
	if err := eng.Setup(ctx); err != nil {
		return res, StageSetup, err
	}

	prefit, err := eng.ROI(ctx, source)
	if err != nil {
		return res, StagePrefit, err
	}
	res.prefit = prefit

	if pars := r.plan.Spectral.Overrides(); len(pars) > 0 {
		log.Debug("overriding spectral parameters", "stage", StageSpectral, "pars", pars)
		if err := eng.SetSpectralPars(ctx, source, pars); err != nil {
			return res, StageSpectral, err
		}
	}

	free := r.plan.FreeSources
	if err := eng.FreeSources(ctx, free.Distance, free.Pars); err != nil {
		return res, StageFree, err
	}
	var names []string
	if r.plan.FreeDiffuse.Galdiff {
		names = append(names, GalacticDiffuse)
	}
	if r.plan.FreeDiffuse.Isodiff {
		names = append(names, IsotropicDiffuse)
	}
	if r.plan.FreeSource {
		names = append(names, source)
	}
	for _, name := range names {
		if err := eng.FreeSource(ctx, name); err != nil {
			return res, StageFree, fmt.Errorf("free %s: %w", name, err)
		}
	}

	log.Debug("fitting", "stage", StageFit)
	result, err := eng.Fit(ctx)
	if err != nil {
		return res, StageFit, err
	}
	res.fit = result

	postfit, err := eng.ROI(ctx, source)
	if err != nil {
		return res, StagePostfit, err
	}
	res.postfit = postfit

	if r.plan.ROI.Write {
		if err := eng.WriteROI(ctx, r.plan.ROI.Filename); err != nil {
			return res, StageWriteROI, err
		}
	}

	sed, err := eng.SED(ctx, source, r.plan.SED.Type)
	if err != nil {
		return res, StageSED, err
	}
	res.sed = sed
	return res, "", nil
}

func (r *Runner) startRun(ctx context.Context, root string, jobs []binning.Job) string {
	if r.recorder == nil {
		return ""
	}
	id, err := r.recorder.StartRun(ctx, root, jobs)
	if err != nil {
		r.logger.Warn("recording run start", "error", err)
		return ""
	}
	return id
}

func (r *Runner) recordBin(ctx context.Context, runID string, outcome Outcome) {
	if r.recorder == nil || runID == "" {
		return
	}
	if err := r.recorder.RecordBin(context.WithoutCancel(ctx), runID, outcome); err != nil {
		r.logger.Warn("recording bin", "bin", outcome.Job.Index, "error", err)
	}
}

func (r *Runner) finishRun(ctx context.Context, runID string, agg *Aggregate, runErr error) {
	if r.recorder == nil || runID == "" {
		return
	}
	if err := r.recorder.FinishRun(context.WithoutCancel(ctx), runID, agg, runErr); err != nil {
		r.logger.Warn("recording run finish", "error", err)
	}
}
