package run_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/repository"
	"github.com/rpggio/phasefold/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func entryOfType(t journal.EntryType) any {
	return mock.MatchedBy(func(e *journal.Entry) bool { return e.Type == t })
}

func TestRunService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RunRepository{}
	jrepo := &mocks.JournalRepository{}
	svc := run.NewService(repo, journal.NewService(jrepo, nil), nil)

	jobs := []binning.Job{
		{Index: 0, Name: "phase_0.0-0.5", Dir: "/bins/phase_0.0-0.5"},
		{Index: 1, Name: "phase_0.5-1.0", Dir: "/bins/phase_0.5-1.0"},
	}

	repo.On("Create", ctx, mock.MatchedBy(func(r *run.Run) bool {
		return r.ID != "" && r.Root == "/bins" && r.Status == run.StatusRunning && r.Planned == 2
	})).Return(nil)
	jrepo.On("Append", ctx, entryOfType(journal.TypeRunStarted)).Return(nil)

	id, err := svc.StartRun(ctx, "/bins", jobs)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	repo.On("AddBin", ctx, mock.MatchedBy(func(b *run.BinOutcome) bool {
		return b.Index == 0 && b.Status == run.BinOK && b.FitQuality != nil && *b.FitQuality == 3
	})).Return(nil)
	require.NoError(t, svc.RecordBin(ctx, id, batch.Outcome{Job: jobs[0], Result: fit.Result{FitQuality: 3}}))

	binErr := &batch.BinError{Index: 1, Dir: jobs[1].Dir, Stage: batch.StageFit, Err: errors.New("diverged")}
	repo.On("AddBin", ctx, mock.MatchedBy(func(b *run.BinOutcome) bool {
		return b.Index == 1 && b.Status == run.BinFailed && b.Stage == batch.StageFit && b.Error == "diverged"
	})).Return(nil)
	jrepo.On("Append", ctx, entryOfType(journal.TypeBinFailed)).Return(nil)
	require.NoError(t, svc.RecordBin(ctx, id, batch.Outcome{Job: jobs[1], Err: binErr}))

	repo.On("Get", ctx, id).Return(&run.Run{ID: id, Root: "/bins", Status: run.StatusRunning, Planned: 2}, nil)
	repo.On("Finish", ctx, mock.MatchedBy(func(r *run.Run) bool {
		return r.Status == run.StatusPartial && r.Bins == 2 && r.Failed == 1 && r.FinishedAt != nil
	})).Return(nil)
	jrepo.On("Append", ctx, entryOfType(journal.TypeRunFinished)).Return(nil)

	agg := &batch.Aggregate{Jobs: jobs, Failures: []*batch.BinError{binErr}}
	require.NoError(t, svc.FinishRun(ctx, id, agg, nil))

	repo.AssertExpectations(t)
	jrepo.AssertExpectations(t)
}

func TestRunService_FinishFailed(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RunRepository{}
	svc := run.NewService(repo, nil, nil)

	repo.On("Get", ctx, "r1").Return(&run.Run{ID: "r1", Status: run.StatusRunning}, nil)
	repo.On("Finish", ctx, mock.MatchedBy(func(r *run.Run) bool {
		return r.Status == run.StatusFailed && r.Error == "bin 0 (/b) fit: boom"
	})).Return(nil)

	runErr := &batch.BinError{Index: 0, Dir: "/b", Stage: batch.StageFit, Err: errors.New("boom")}
	require.NoError(t, svc.FinishRun(ctx, "r1", &batch.Aggregate{}, runErr))
	repo.AssertExpectations(t)
}

func TestRunService_Get(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RunRepository{}
	svc := run.NewService(repo, nil, nil)

	repo.On("Get", ctx, "missing").Return(nil, repository.ErrNotFound)
	_, err := svc.Get(ctx, "missing")
	require.ErrorIs(t, err, run.ErrRunNotFound)

	_, err = svc.Get(ctx, "")
	require.ErrorIs(t, err, run.ErrInvalidInput)

	repo.On("Get", ctx, "r1").Return(&run.Run{ID: "r1", Status: run.StatusSucceeded}, nil)
	repo.On("Bins", ctx, "r1").Return([]run.BinOutcome{{RunID: "r1", Index: 0}}, nil)
	detail, err := svc.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "r1", detail.Run.ID)
	require.Len(t, detail.Bins, 1)
}

func TestRunService_JournalFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RunRepository{}
	jrepo := &mocks.JournalRepository{}
	svc := run.NewService(repo, journal.NewService(jrepo, nil), nil)

	repo.On("Create", ctx, mock.Anything).Return(nil)
	jrepo.On("Append", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.StartRun(ctx, "/bins", nil)
	require.NoError(t, err)
}
