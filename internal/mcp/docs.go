package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `phasefold folds pulsar photon events onto rotational phase, splits an analysis into phase bins and fits every bin.

Core concepts:
- Phase axis: ordered, non-overlapping bins over [0, norm). Bins are named <axis>_<min>-<max>.
- Phase column: PULSE_PHASE (by default) written into an event file, with a PHSE_LOG provenance record in the header.
- Bin directory: one per bin under a root, holding exactly one analysis config restricted to that bin's phase range.
- Run: one batch fit over the bin directories. The aggregate lists prefit, fit, postfit and flux points in bin order.

Default workflow:
1) write_phase to add the phase column to the event files named by the analysis config.
2) preview_axis to check the bins, then generate_bins from the base config.
3) run_batch over the generated root; pass source or a plan file naming the target.
4) list_runs / get_run / recent_journal to inspect what happened.

Docs:
- phasefold://docs/index
- phasefold://docs/plan
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "phasefold://docs/index",
		Name:        "docs_index",
		Title:       "phasefold docs index",
		Description: "What each tool does and in what order to call them.",
		Content: `# phasefold

## Tools

- ` + "`write_phase`" + `: compute phases with a par-file ephemeris and write them as a column. An existing column is replaced; with ` + "`keep_existing`" + ` the call fails with ALREADY_EXISTS instead.
- ` + "`preview_axis`" + `: validate an axis (bounds + nbins, or explicit edges) and list the bins it produces.
- ` + "`generate_bins`" + `: write one directory and config per bin. Reruns rewrite the same files.
- ` + "`run_batch`" + `: fit every bin directory. By default the first failing bin stops the run; the plan's ` + "`batch.continue_on_error`" + ` keeps going and records failure slots.
- ` + "`list_runs`" + `, ` + "`get_run`" + `: the run ledger, including each bin's stage and error on failure.
- ` + "`recent_journal`" + `: every phase write, bin generation and run, newest first.

## Errors

Tool errors are JSON objects with ` + "`code`" + `, ` + "`message`" + ` and usually ` + "`recovery_hint`" + `. A failed ` + "`run_batch`" + ` still returns the partial aggregate under ` + "`details`" + `.
`,
	},
	{
		URI:         "phasefold://docs/plan",
		Name:        "docs_plan",
		Title:       "Analysis plan reference",
		Description: "Keys of the YAML analysis plan read by run_batch.",
		Content: `# Analysis plan

` + "```yaml" + `
source_name: J0835-4510   # required
free_sources:
  distance: 3.0           # degrees around the ROI centre
  pars: norm              # a name or a list
free_diff:
  galdiff: true
  isodiff: true
free_source: true
roi:
  write: false
  filename: fit_model.npy
spectral:
  default: true           # false applies index / prefactor / scale
  index: 2.0
sed:
  sed_type: likelihood
batch:
  continue_on_error: false
  continue_on_timeout: true
  bin_timeout: 0s         # 0 disables the per-bin timeout
` + "```" + `

Stage order per bin: setup, prefit snapshot, spectral overrides, free sources, fit, postfit snapshot, write ROI, SED.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
