package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rpggio/phasefold/internal/binning"
	"github.com/rpggio/phasefold/internal/pipeline"
)

func addAxisFlags(flags *pflag.FlagSet, spec *pipeline.AxisSpec) {
	flags.StringVar(&spec.Name, "axis", "", "axis name used in bin names (default phase)")
	flags.Float64Var(&spec.PhaseMin, "min", 0, "lower phase bound")
	flags.Float64Var(&spec.PhaseMax, "max", 1, "upper phase bound")
	flags.IntVarP(&spec.NBins, "nbins", "n", 0, "number of even bins between --min and --max")
	flags.Float64SliceVar(&spec.EdgesMin, "edges-min", nil, "explicit lower edges (comma separated)")
	flags.Float64SliceVar(&spec.EdgesMax, "edges-max", nil, "explicit upper edges (comma separated)")
	flags.Float64Var(&spec.Norm, "norm", 0, "phase normalization (default 1)")
}

func printJobs(cmd *cobra.Command, jobs []binning.Job) error {
	t := newTable(cmd.OutOrStdout(), "bin", "phasemin", "phasemax", "config")
	for _, job := range jobs {
		t.row(strconv.Itoa(job.Index), num(job.EdgeMin), num(job.EdgeMax), job.ConfigPath)
	}
	return t.flush()
}

func NewBinsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bins",
		GroupID: gPipeline,
		Short:   "Preview or generate per-bin analysis configurations",
	}
	cmd.AddCommand(newBinsPreviewCommand(), newBinsGenerateCommand(opts))
	return cmd
}

func newBinsPreviewCommand() *cobra.Command {
	var (
		spec     pipeline.AxisSpec
		root     string
		absolute bool
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the bins an axis produces without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Previewing touches neither the ledger nor the event store.
			svc := pipeline.NewService(pipeline.Deps{})
			ax, jobs, err := svc.PreviewBins(spec, root, absolute)
			if err != nil {
				return err
			}
			cmd.Printf("Axis %s: %d bins, norm %s, contiguous %s\n",
				bold("%s", ax.Name()), ax.NBin(), num(ax.Norm()), boolText(ax.IsContiguous()))
			return printJobs(cmd, jobs)
		},
	}
	addAxisFlags(cmd.Flags(), &spec)
	cmd.Flags().StringVar(&root, "root", ".", "directory the bins would be created under")
	cmd.Flags().BoolVar(&absolute, "absolute", false, "use absolute phase instead of edges")
	return cmd
}

func newBinsGenerateCommand(opts *rootOptions) *cobra.Command {
	var req pipeline.GenerateRequest
	cmd := &cobra.Command{
		Use:   "generate BASE_CONFIG",
		Short: "Write one directory and configuration per phase bin",
		Long: `Write one directory per bin under --root (default: the base config's
directory), each with a copy of the base configuration whose selection is
restricted to the bin's phase range. Reruns rewrite the same files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			req.ConfigPath = args[0]
			jobs, err := a.pipeline.GenerateBins(cmd.Context(), req)
			if err != nil {
				return err
			}
			cmd.Printf("%s generated %d bins\n", okMark(), len(jobs))
			return printJobs(cmd, jobs)
		},
	}
	addAxisFlags(cmd.Flags(), &req.Axis)
	cmd.Flags().StringVar(&req.Root, "root", "", "output root")
	cmd.Flags().BoolVar(&req.Absolute, "absolute", false, "write absolute phase bounds instead of edges")
	return cmd
}
