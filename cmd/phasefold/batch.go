package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rpggio/phasefold/internal/axis"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/pipeline"
)

func NewBatchCommand(opts *rootOptions) *cobra.Command {
	var (
		req        pipeline.BatchRequest
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:     "batch ROOT",
		GroupID: gPipeline,
		Short:   "Fit every phase bin under ROOT",
		Long: `Run the likelihood fit in every bin directory under ROOT, ordered by the
bin's lower phase edge, and print the results in bin order. The run and
each bin's outcome are recorded in the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			req.Root = args[0]
			agg, err := a.pipeline.RunBatch(cmd.Context(), req)
			if agg == nil {
				return err
			}
			if jsonOutput {
				if perr := printJSON(cmd.OutOrStdout(), agg); perr != nil && err == nil {
					err = perr
				}
				return err
			}
			if perr := printAggregate(cmd, agg); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.DirPrefix, "prefix", axis.DefaultName+"_", "only bin directories starting with this prefix")
	flags.StringVar(&req.Pattern, "pattern", batch.DefaultPattern, "config file glob inside each bin")
	flags.StringVar(&req.PlanPath, "plan", "", "analysis plan (YAML)")
	flags.StringVar(&req.Source, "source", "", "target source name; overrides the plan")
	flags.BoolVar(&jsonOutput, "json", false, "print the aggregate as JSON")
	return cmd
}

func printAggregate(cmd *cobra.Command, agg *batch.Aggregate) error {
	t := newTable(cmd.OutOrStdout(), "bin", "name", "ok", "fit_quality", "loglike", "flux_points")
	for i, job := range agg.Jobs {
		fitSlot := agg.Fits[i]
		if fitSlot.Failed {
			t.row(strconv.Itoa(job.Index), job.Name, failMark(), "-", "-", fitSlot.Error)
			continue
		}
		t.row(
			strconv.Itoa(job.Index),
			job.Name,
			okMark(),
			strconv.Itoa(fitSlot.Value.FitQuality),
			num(fitSlot.Value.LogLike),
			strconv.Itoa(len(agg.FluxPoints[i].Value.Flux)),
		)
	}
	if err := t.flush(); err != nil {
		return err
	}
	cmd.Printf("%s bins, %s failed\n", bold("%d", agg.Len()), bold("%d", agg.Failed()))
	return nil
}
