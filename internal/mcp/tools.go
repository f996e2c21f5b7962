package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/phasefold/internal/axis"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/pipeline"
	"github.com/rpggio/phasefold/internal/timing"
)

const defaultRunLimit = 20

type axisArgs struct {
	Name     string    `json:"name,omitempty" jsonschema:"axis label used in bin names (default phase)"`
	PhaseMin float64   `json:"phase_min,omitempty" jsonschema:"lower bound of an evenly divided axis"`
	PhaseMax float64   `json:"phase_max,omitempty" jsonschema:"upper bound of an evenly divided axis"`
	NBins    int       `json:"nbins,omitempty" jsonschema:"number of even bins between phase_min and phase_max"`
	EdgesMin []float64 `json:"edges_min,omitempty" jsonschema:"explicit lower edges; used instead of bounds when given"`
	EdgesMax []float64 `json:"edges_max,omitempty" jsonschema:"explicit upper edges, same length as edges_min"`
	Norm     float64   `json:"norm,omitempty" jsonschema:"phase normalization (default 1)"`
}

func (a axisArgs) spec() pipeline.AxisSpec {
	return pipeline.AxisSpec{
		Name:     a.Name,
		PhaseMin: a.PhaseMin,
		PhaseMax: a.PhaseMax,
		NBins:    a.NBins,
		EdgesMin: a.EdgesMin,
		EdgesMax: a.EdgesMax,
		Norm:     a.Norm,
	}
}

type previewAxisArgs struct {
	Axis     axisArgs `json:"axis" jsonschema:"the phase axis"`
	Root     string   `json:"root,omitempty" jsonschema:"directory the bins would be created under"`
	Absolute bool     `json:"absolute,omitempty" jsonschema:"name bins by absolute phase instead of edges"`
}

type generateBinsArgs struct {
	ConfigPath string   `json:"config_path" jsonschema:"base analysis config (YAML)"`
	Root       string   `json:"root,omitempty" jsonschema:"output root; defaults to the config's directory"`
	Axis       axisArgs `json:"axis" jsonschema:"the phase axis"`
	Absolute   bool     `json:"absolute,omitempty" jsonschema:"write absolute phase bounds instead of edges"`
}

type writePhaseArgs struct {
	EventFiles     []string `json:"event_files" jsonschema:"event files to fold"`
	SpacecraftFile string   `json:"spacecraft_file" jsonschema:"spacecraft file shared by the event files"`
	EphemerisFile  string   `json:"ephemeris_file" jsonschema:"pulsar timing ephemeris (par file)"`
	Output         string   `json:"output,omitempty" jsonschema:"write to this file instead of in place (single event file only)"`
	Column         string   `json:"column,omitempty" jsonschema:"phase column name (default PULSE_PHASE)"`
	KeepExisting   bool     `json:"keep_existing,omitempty" jsonschema:"fail instead of replacing an existing column or output file"`
	Checksum       bool     `json:"checksum,omitempty" jsonschema:"record a content checksum"`
	Offset         *float64 `json:"offset,omitempty" jsonschema:"phase offset added before normalization"`
	Ephem          string   `json:"ephem,omitempty" jsonschema:"solar-system ephemeris (default DE421)"`
	WeightColumn   string   `json:"weight_column,omitempty" jsonschema:"event column holding photon weights"`
}

type runBatchArgs struct {
	Root      string `json:"root" jsonschema:"directory holding the bin directories"`
	DirPrefix string `json:"dir_prefix,omitempty" jsonschema:"only bin directories starting with this prefix"`
	Pattern   string `json:"pattern,omitempty" jsonschema:"config file glob inside each bin (default *.yaml)"`
	PlanPath  string `json:"plan_path,omitempty" jsonschema:"analysis plan (YAML)"`
	Source    string `json:"source,omitempty" jsonschema:"target source name; overrides the plan"`
}

type listRunsArgs struct {
	Status string `json:"status,omitempty" jsonschema:"filter by status: running, succeeded, partial or failed"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum runs to return (default 20)"`
	Offset int    `json:"offset,omitempty"`
}

type getRunArgs struct {
	ID string `json:"id" jsonschema:"run id"`
}

type recentJournalArgs struct {
	Type   string `json:"type,omitempty" jsonschema:"filter by entry type"`
	RunID  string `json:"run_id,omitempty" jsonschema:"filter by run id"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum entries to return (default 50)"`
	Offset int    `json:"offset,omitempty"`
}

type binView struct {
	Index    int     `json:"index"`
	EdgeMin  float64 `json:"edge_min"`
	EdgeMax  float64 `json:"edge_max"`
	PhaseMin float64 `json:"phase_min"`
	PhaseMax float64 `json:"phase_max"`
	Center   float64 `json:"center"`
	Width    float64 `json:"width"`
}

type axisView struct {
	Name       string    `json:"name"`
	Reference  float64   `json:"reference"`
	Norm       float64   `json:"norm"`
	Contiguous bool      `json:"contiguous"`
	Bins       []binView `json:"bins"`
}

func viewAxis(ax axis.Axis) axisView {
	lo, hi := ax.PhaseMin(), ax.PhaseMax()
	centers, widths := ax.Center(), ax.BinWidth()
	bins := make([]binView, ax.NBin())
	for i, b := range ax.Bins() {
		bins[i] = binView{
			Index:    b.Index,
			EdgeMin:  b.Min,
			EdgeMax:  b.Max,
			PhaseMin: lo[i],
			PhaseMax: hi[i],
			Center:   centers[i],
			Width:    widths[i],
		}
	}
	return axisView{
		Name:       ax.Name(),
		Reference:  ax.Reference(),
		Norm:       ax.Norm(),
		Contiguous: ax.IsContiguous(),
		Bins:       bins,
	}
}

type previewResult struct {
	Axis axisView      `json:"axis"`
	Jobs []binning.Job `json:"jobs"`
}

type jobsResult struct {
	Jobs []binning.Job `json:"jobs"`
}

type foldResult struct {
	Written []pipeline.Folded `json:"written"`
}

type batchResult struct {
	Bins      int              `json:"bins"`
	Failed    int              `json:"failed"`
	Aggregate *batch.Aggregate `json:"aggregate"`
}

type runsResult struct {
	Runs []run.Run `json:"runs"`
}

type journalResult struct {
	Entries []journal.Entry `json:"entries"`
}

func registerTools(server *sdkmcp.Server, svc Services) {
	if svc.Pipeline != nil {
		registerPipelineTools(server, svc.Pipeline)
	}
	if svc.Runs != nil {
		registerRunTools(server, svc.Runs)
	}
	if svc.Journal != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "recent_journal",
			Description: "List recent pipeline journal entries, newest first",
		}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in recentJournalArgs) (*sdkmcp.CallToolResult, any, error) {
			opts := journal.ListOptions{Limit: in.Limit, Offset: in.Offset}
			if in.Type != "" {
				t := journal.EntryType(in.Type)
				opts.Type = &t
			}
			if in.RunID != "" {
				opts.RunID = &in.RunID
			}
			entries, err := svc.Journal.Recent(ctx, opts)
			if err != nil {
				return errorResult(err, nil), nil, nil
			}
			return jsonResult(journalResult{Entries: entries})
		})
	}
}

func registerPipelineTools(server *sdkmcp.Server, p PipelineService) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "preview_axis",
		Description: "Validate a phase axis and show the bins and directories generate_bins would create, without writing anything",
	}, func(_ context.Context, _ *sdkmcp.CallToolRequest, in previewAxisArgs) (*sdkmcp.CallToolResult, any, error) {
		ax, jobs, err := p.PreviewBins(in.Axis.spec(), in.Root, in.Absolute)
		if err != nil {
			return errorResult(err, nil), nil, nil
		}
		return jsonResult(previewResult{Axis: viewAxis(ax), Jobs: jobs})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "generate_bins",
		Description: "Write one analysis config per phase bin, each restricted to its bin's phase range",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in generateBinsArgs) (*sdkmcp.CallToolResult, any, error) {
		jobs, err := p.GenerateBins(ctx, pipeline.GenerateRequest{
			ConfigPath: in.ConfigPath,
			Root:       in.Root,
			Axis:       in.Axis.spec(),
			Absolute:   in.Absolute,
		})
		if err != nil {
			return errorResult(err, nil), nil, nil
		}
		return jsonResult(jobsResult{Jobs: jobs})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "write_phase",
		Description: "Compute pulsar rotational phase for every event and store it as a column with a provenance record",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in writePhaseArgs) (*sdkmcp.CallToolResult, any, error) {
		written, err := p.Fold(ctx, pipeline.FoldRequest{
			EventFiles:     in.EventFiles,
			SpacecraftFile: in.SpacecraftFile,
			EphemerisFile:  in.EphemerisFile,
			Output:         in.Output,
			Column:         in.Column,
			KeepExisting:   in.KeepExisting,
			Checksum:       in.Checksum,
			Offset:         in.Offset,
			Options:        timing.BuildOptions{Ephem: in.Ephem, WeightColumn: in.WeightColumn},
		})
		if err != nil {
			var details any
			if len(written) > 0 {
				details = foldResult{Written: written}
			}
			return errorResult(err, details), nil, nil
		}
		return jsonResult(foldResult{Written: written})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "run_batch",
		Description: "Run the likelihood fit in every bin directory under root and return the aggregate in bin order",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in runBatchArgs) (*sdkmcp.CallToolResult, any, error) {
		agg, err := p.RunBatch(ctx, pipeline.BatchRequest{
			Root:      in.Root,
			DirPrefix: in.DirPrefix,
			Pattern:   in.Pattern,
			PlanPath:  in.PlanPath,
			Source:    in.Source,
		})
		if err != nil {
			var details any
			if agg != nil {
				details = batchResult{Bins: agg.Len(), Failed: agg.Failed(), Aggregate: agg}
			}
			return errorResult(err, details), nil, nil
		}
		return jsonResult(batchResult{Bins: agg.Len(), Failed: agg.Failed(), Aggregate: agg})
	})
}

func registerRunTools(server *sdkmcp.Server, runs RunService) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List batch runs, newest first",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in listRunsArgs) (*sdkmcp.CallToolResult, any, error) {
		opts := run.ListOptions{Limit: in.Limit, Offset: in.Offset}
		if opts.Limit <= 0 {
			opts.Limit = defaultRunLimit
		}
		if in.Status != "" {
			status := run.Status(in.Status)
			opts.Status = &status
		}
		list, err := runs.List(ctx, opts)
		if err != nil {
			return errorResult(err, nil), nil, nil
		}
		return jsonResult(runsResult{Runs: list})
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_run",
		Description: "Get a batch run with the outcome of each bin",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in getRunArgs) (*sdkmcp.CallToolResult, any, error) {
		detail, err := runs.Get(ctx, in.ID)
		if err != nil {
			return errorResult(err, nil), nil, nil
		}
		return jsonResult(detail)
	})
}
