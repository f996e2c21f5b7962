package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpggio/phasefold/internal/analysis"
	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/config"
)

var (
	gPipeline = "Pipeline:"
	gLedger   = "Ledger:"
	gServer   = "Server:"
)

// rootOptions are the global flags. Set flags override the loaded config.
type rootOptions struct {
	configPath string
	logLevel   string
	dbPath     string
	dryRun     bool
	cmd        *cobra.Command
}

func (o *rootOptions) load() (config.Config, error) {
	if o.configPath != "" {
		if err := os.Setenv(config.EnvConfigPath, o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config error: %w", err)
	}
	flags := o.cmd.PersistentFlags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("db") {
		cfg.DB.Path = o.dbPath
	}
	if flags.Changed("dry-run") {
		cfg.Engine.DryRun = o.dryRun
	}
	return cfg, nil
}

func (o *rootOptions) open() (*app, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, analysis.ErrInvalidPlan):
		fmt.Fprintln(os.Stderr, "\nThe analysis plan needs a source: set source_name in the plan or pass --source.")
	case errors.Is(err, batch.ErrNoBins):
		fmt.Fprintln(os.Stderr, "\nNo bin directories found. Run 'phasefold bins generate' first or check --prefix.")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		handleCmdError(err)
		stop()
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "phasefold",
		Short: "phasefold runs phase-resolved pulsar analyses",
		Long: `phasefold folds Fermi-LAT photon events onto a pulsar's rotational phase,
splits an analysis into phase bins and runs a likelihood fit in every bin.

Configuration is read from $PHASEFOLD_CONFIG_PATH (YAML) and PHASEFOLD_* variables.`,
		SilenceUsage: true,
	}
	opts.cmd = cmd

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&opts.configPath, "config", "", "config file path")
	globalFlags.StringVarP(&opts.logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	globalFlags.StringVar(&opts.dbPath, "db", "", "run ledger database path")
	globalFlags.BoolVar(&opts.dryRun, "dry-run", false, "use the built-in dry-run fit engine")

	for _, g := range []string{gPipeline, gLedger, gServer} {
		cmd.AddGroup(&cobra.Group{ID: g, Title: g})
	}

	cmd.AddCommand(
		NewPhaseCommand(opts),
		NewBinsCommand(opts),
		NewBatchCommand(opts),
		NewRunsCommand(opts),
		NewJournalCommand(opts),
		NewServeCommand(opts),
		NewEngineCommand(),
	)
	return cmd
}
