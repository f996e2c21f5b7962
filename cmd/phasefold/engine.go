package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/fit/rpc"
)

// NewEngineCommand serves the dry-run engine over stdio. It speaks the same
// protocol a batch expects from engine.command, so
// `engine: {command: phasefold, args: [engine]}` exercises the helper path
// end to end without a likelihood backend.
func NewEngineCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "engine CONFIG",
		Short:  "Serve the dry-run fit engine over stdio",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			configPath := args[0]
			if !filepath.IsAbs(configPath) {
				configPath = filepath.Join(dir, configPath)
			}
			return rpc.Serve(cmd.Context(), os.Stdin, os.Stdout, fit.NewDryRun(dir, configPath))
		},
	}
}
