package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
)

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func NewRunsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "runs",
		GroupID: gLedger,
		Short:   "Inspect recorded batch runs",
	}
	cmd.AddCommand(newRunsListCommand(opts), newRunsShowCommand(opts))
	return cmd
}

func newRunsListCommand(opts *rootOptions) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			listOpts := run.ListOptions{Limit: limit}
			if status != "" {
				s := run.Status(status)
				listOpts.Status = &s
			}
			runs, err := a.runs.List(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "id", "status", "bins", "failed", "started", "root")
			for _, r := range runs {
				started := r.StartedAt
				t.row(r.ID, statusText(r.Status), strconv.Itoa(r.Bins), strconv.Itoa(r.Failed), formatTime(&started), r.Root)
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (running, succeeded, partial, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newRunsShowCommand(opts *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run and the outcome of each bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			detail, err := a.runs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), detail)
			}

			r := detail.Run
			cmd.Println(bold("Run %s", r.ID))
			cmd.Printf("  Status:   %s\n", statusText(r.Status))
			cmd.Printf("  Root:     %s\n", r.Root)
			cmd.Printf("  Started:  %s\n", formatTime(&r.StartedAt))
			cmd.Printf("  Finished: %s\n", formatTime(r.FinishedAt))
			if r.Error != "" {
				cmd.Printf("  Error:    %s\n", r.Error)
			}

			t := newTable(cmd.OutOrStdout(), "bin", "name", "ok", "stage", "fit_quality", "error")
			for _, b := range detail.Bins {
				quality := "-"
				if b.FitQuality != nil {
					quality = strconv.Itoa(*b.FitQuality)
				}
				t.row(strconv.Itoa(b.Index), b.Name, binStatusText(b.Status), b.Stage, quality, b.Error)
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}

func NewJournalCommand(opts *rootOptions) *cobra.Command {
	var (
		entryType string
		runID     string
		limit     int
	)
	cmd := &cobra.Command{
		Use:     "journal",
		GroupID: gLedger,
		Short:   "Show recent pipeline journal entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			listOpts := journal.ListOptions{Limit: limit}
			if entryType != "" {
				t := journal.EntryType(entryType)
				listOpts.Type = &t
			}
			if runID != "" {
				listOpts.RunID = &runID
			}
			entries, err := a.journal.Recent(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "time", "type", "summary", "path")
			for _, e := range entries {
				created := e.CreatedAt
				t.row(formatTime(&created), string(e.Type), e.Summary, e.Path)
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&entryType, "type", "", "filter by entry type")
	cmd.Flags().StringVar(&runID, "run", "", "filter by run id")
	cmd.Flags().IntVar(&limit, "limit", journal.DefaultLimit, "maximum entries to show")
	return cmd
}
