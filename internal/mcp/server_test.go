package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/pipeline"
	"github.com/rpggio/phasefold/internal/timing"
	"github.com/stretchr/testify/require"
)

type runsStub struct {
	listFn func(context.Context, run.ListOptions) ([]run.Run, error)
	getFn  func(context.Context, string) (*run.Detail, error)
}

func (r runsStub) List(ctx context.Context, opts run.ListOptions) ([]run.Run, error) {
	return r.listFn(ctx, opts)
}
func (r runsStub) Get(ctx context.Context, id string) (*run.Detail, error) {
	return r.getFn(ctx, id)
}

type journalStub struct {
	recentFn func(context.Context, journal.ListOptions) ([]journal.Entry, error)
}

func (j journalStub) Recent(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	return j.recentFn(ctx, opts)
}

func connect(t *testing.T, svc Services) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(Config{Services: svc})
	ct, st := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any, out any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return res
}

func TestServer_ListsTools(t *testing.T) {
	cs := connect(t, Services{
		Pipeline: pipeline.NewService(pipeline.Deps{}),
		Runs:     runsStub{},
		Journal:  journalStub{},
	})
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	require.Equal(t, []string{
		"generate_bins", "get_run", "list_runs", "preview_axis",
		"recent_journal", "run_batch", "write_phase",
	}, names)
}

func TestServer_ReadsDocs(t *testing.T) {
	cs := connect(t, Services{})
	res, err := cs.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "phasefold://docs/plan"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "source_name")
}

func TestPreviewAxis(t *testing.T) {
	cs := connect(t, Services{Pipeline: pipeline.NewService(pipeline.Deps{})})

	var out previewResult
	res := callTool(t, cs, "preview_axis", map[string]any{
		"axis": map[string]any{"phase_min": 0, "phase_max": 1, "nbins": 4},
		"root": "/bins",
	}, &out)
	require.False(t, res.IsError)
	require.Len(t, out.Axis.Bins, 4)
	require.True(t, out.Axis.Contiguous)
	require.InDelta(t, 0.375, out.Axis.Bins[1].Center, 1e-12)
	require.Equal(t, "phase_0.75-1.0", out.Jobs[3].Name)

	var apiErr APIError
	res = callTool(t, cs, "preview_axis", map[string]any{
		"axis": map[string]any{"edges_min": []float64{0, 0.4}, "edges_max": []float64{0.5, 0.9}},
	}, &apiErr)
	require.True(t, res.IsError)
	require.Equal(t, "INVALID_AXIS", apiErr.Code)
}

func TestGenerateAndRunBatch(t *testing.T) {
	root := t.TempDir()
	cfg := filepath.Join(root, "base.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("selection:\n  emin: 100\n"), 0o644))
	cs := connect(t, Services{Pipeline: pipeline.NewService(pipeline.Deps{Engines: fit.DryRunFactory})})

	var jobs jobsResult
	res := callTool(t, cs, "generate_bins", map[string]any{
		"config_path": cfg,
		"axis":        map[string]any{"phase_min": 0, "phase_max": 1, "nbins": 2},
	}, &jobs)
	require.False(t, res.IsError)
	require.Len(t, jobs.Jobs, 2)
	require.FileExists(t, jobs.Jobs[1].ConfigPath)

	var apiErr APIError
	res = callTool(t, cs, "run_batch", map[string]any{"root": root, "dir_prefix": "phase_"}, &apiErr)
	require.True(t, res.IsError)
	require.Equal(t, "INVALID_PLAN", apiErr.Code)

	var out batchResult
	res = callTool(t, cs, "run_batch", map[string]any{
		"root": root, "dir_prefix": "phase_", "source": "J0835-4510",
	}, &out)
	require.False(t, res.IsError)
	require.Equal(t, 2, out.Bins)
	require.Equal(t, 0, out.Failed)
	require.Len(t, out.Aggregate.FluxPoints, 2)
}

func TestRunBatch_NoBins(t *testing.T) {
	cs := connect(t, Services{Pipeline: pipeline.NewService(pipeline.Deps{Engines: fit.DryRunFactory})})
	var apiErr APIError
	res := callTool(t, cs, "run_batch", map[string]any{"root": t.TempDir(), "source": "J0835-4510"}, &apiErr)
	require.True(t, res.IsError)
	require.Equal(t, "NO_BINS", apiErr.Code)
}

func TestWritePhase_MissingEphemeris(t *testing.T) {
	cs := connect(t, Services{Pipeline: failingPipeline{err: errors.New("boom")}})
	var apiErr APIError
	res := callTool(t, cs, "write_phase", map[string]any{
		"event_files":     []string{"ft1.db"},
		"spacecraft_file": "ft2.fits",
		"ephemeris_file":  "vela.par",
	}, &apiErr)
	require.True(t, res.IsError)
	require.Equal(t, "PIPELINE_ERROR", apiErr.Code)
	require.Equal(t, "boom", apiErr.Message)
}

func TestRunTools(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotOpts run.ListOptions
	cs := connect(t, Services{Runs: runsStub{
		listFn: func(_ context.Context, opts run.ListOptions) ([]run.Run, error) {
			gotOpts = opts
			return []run.Run{{ID: "r1", Root: "/bins", Status: run.StatusPartial, StartedAt: started}}, nil
		},
		getFn: func(_ context.Context, id string) (*run.Detail, error) {
			if id != "r1" {
				return nil, run.ErrRunNotFound
			}
			return &run.Detail{Run: run.Run{ID: "r1"}, Bins: []run.BinOutcome{{RunID: "r1", Index: 0, Status: run.BinFailed, Stage: batch.StageFit}}}, nil
		},
	}})

	var runs runsResult
	res := callTool(t, cs, "list_runs", map[string]any{"status": "partial"}, &runs)
	require.False(t, res.IsError)
	require.Len(t, runs.Runs, 1)
	require.Equal(t, defaultRunLimit, gotOpts.Limit)
	require.Equal(t, run.StatusPartial, *gotOpts.Status)

	var detail run.Detail
	res = callTool(t, cs, "get_run", map[string]any{"id": "r1"}, &detail)
	require.False(t, res.IsError)
	require.Equal(t, batch.StageFit, detail.Bins[0].Stage)

	var apiErr APIError
	res = callTool(t, cs, "get_run", map[string]any{"id": "nope"}, &apiErr)
	require.True(t, res.IsError)
	require.Equal(t, "RUN_NOT_FOUND", apiErr.Code)
}

func TestRecentJournal(t *testing.T) {
	var gotOpts journal.ListOptions
	cs := connect(t, Services{Journal: journalStub{
		recentFn: func(_ context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
			gotOpts = opts
			return []journal.Entry{{ID: 1, Type: journal.TypeBinsGenerated, Summary: "generated 2 phase bins"}}, nil
		},
	}})

	var out journalResult
	res := callTool(t, cs, "recent_journal", map[string]any{"type": "bins_generated", "limit": 5}, &out)
	require.False(t, res.IsError)
	require.Len(t, out.Entries, 1)
	require.Equal(t, journal.TypeBinsGenerated, *gotOpts.Type)
	require.Equal(t, 5, gotOpts.Limit)
	require.Nil(t, gotOpts.RunID)
}

type failingPipeline struct {
	PipelineService
	err error
}

func (f failingPipeline) Fold(context.Context, pipeline.FoldRequest) ([]pipeline.Folded, error) {
	return nil, f.err
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	binErr := &batch.BinError{Index: 2, Dir: "/bins/phase_0.5-1.0", Stage: batch.StageSED, Err: errors.New("no convergence")}
	apiErr := MapError(binErr)
	require.Equal(t, "BIN_FAILED", apiErr.Code)
	require.Equal(t, batch.StageSED, apiErr.Details.(map[string]any)["stage"])

	require.Equal(t, "NOT_BARYCENTERED", MapError(timing.ErrNotBarycentered).Code)
}
