package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/phasefold/internal/batch"
	"github.com/rpggio/phasefold/internal/config"
	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/fit/rpc"
	"github.com/rpggio/phasefold/internal/pipeline"
	"github.com/rpggio/phasefold/internal/sqlite"
	"github.com/rpggio/phasefold/internal/timing"
)

// app holds the services a command runs against.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlite.DB
	journal  *journal.Service
	runs     *run.Service
	pipeline *pipeline.Service
	closers  []io.Closer
}

func newApp(cfg config.Config) (*app, error) {
	logger, logCloser := newLogger(cfg.Log.Level, cfg.Log.Path)
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to prepare database path: %w", err)
	}
	db, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db)

	a.journal = journal.NewService(sqlite.NewJournalRepository(db), logger)
	a.runs = run.NewService(sqlite.NewRunRepository(db), a.journal, logger)

	var ws batch.Workspace
	if cfg.Engine.ProcessWorkspace {
		ws = batch.ProcessWorkspace{}
	}
	a.pipeline = pipeline.NewService(pipeline.Deps{
		Store:     sqlite.NewEventStore(),
		Registry:  timing.DefaultRegistry,
		Engines:   engineFactory(cfg.Engine, logger),
		Workspace: ws,
		Recorder:  a.runs,
		Journal:   a.journal,
		Logger:    logger,
	})
	return a, nil
}

// engineFactory returns nil when no engine is configured; batch commands
// then fail with a configuration error.
func engineFactory(cfg config.EngineConfig, logger *slog.Logger) fit.Factory {
	switch {
	case cfg.DryRun:
		return fit.DryRunFactory
	case cfg.Command != "":
		return rpc.Launcher{Command: cfg.Command, Args: cfg.Args, Env: cfg.Env, Logger: logger}
	default:
		return nil
	}
}

// Close releases the database and the log file, in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}
	a.closers = nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
