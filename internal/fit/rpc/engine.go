package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/rpggio/phasefold/internal/fit"
)

const shutdownTimeout = 5 * time.Second

type nameParams struct {
	Name string `json:"name"`
}

type spectralParams struct {
	Name string             `json:"name"`
	Pars map[string]float64 `json:"pars"`
}

type freeSourcesParams struct {
	Distance float64  `json:"distance"`
	Pars     []string `json:"pars"`
}

type writeROIParams struct {
	Filename string `json:"filename"`
}

type sedParams struct {
	Name    string `json:"name"`
	SEDType string `json:"sed_type"`
}

// Engine is a fit.Engine whose calls are served by a Client.
type Engine struct {
	client *Client
	stdin  io.Closer
	cmd    *exec.Cmd
}

var _ fit.Engine = (*Engine)(nil)

// NewEngine wraps a client. closer, if non-nil, is closed after shutdown.
func NewEngine(client *Client, closer io.Closer) *Engine {
	return &Engine{client: client, stdin: closer}
}

func (e *Engine) Setup(ctx context.Context) error {
	return e.client.Call(ctx, MethodSetup, nil, nil)
}

func (e *Engine) ROI(ctx context.Context, name string) (fit.Snapshot, error) {
	var snap fit.Snapshot
	err := e.client.Call(ctx, MethodROI, nameParams{Name: name}, &snap)
	return snap, err
}

func (e *Engine) SetSpectralPars(ctx context.Context, name string, pars map[string]float64) error {
	return e.client.Call(ctx, MethodSetSpectralPars, spectralParams{Name: name, Pars: pars}, nil)
}

func (e *Engine) FreeSources(ctx context.Context, distance float64, pars []string) error {
	return e.client.Call(ctx, MethodFreeSources, freeSourcesParams{Distance: distance, Pars: pars}, nil)
}

func (e *Engine) FreeSource(ctx context.Context, name string) error {
	return e.client.Call(ctx, MethodFreeSource, nameParams{Name: name}, nil)
}

func (e *Engine) Fit(ctx context.Context) (fit.Result, error) {
	var res fit.Result
	err := e.client.Call(ctx, MethodFit, nil, &res)
	return res, err
}

func (e *Engine) WriteROI(ctx context.Context, filename string) error {
	return e.client.Call(ctx, MethodWriteROI, writeROIParams{Filename: filename}, nil)
}

func (e *Engine) SED(ctx context.Context, name, sedType string) (fit.SED, error) {
	var sed fit.SED
	err := e.client.Call(ctx, MethodSED, sedParams{Name: name, SEDType: sedType}, &sed)
	return sed, err
}

// Close asks the helper to shut down, then releases the pipe and the process.
// A broken connection skips the shutdown call and kills the process.
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	callErr := e.client.Call(ctx, MethodShutdown, nil, nil)
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	if e.cmd == nil {
		return callErr
	}
	if callErr != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	waitErr := e.cmd.Wait()
	if callErr != nil {
		return callErr
	}
	return waitErr
}

// Launcher starts one helper process per bin. The helper runs in the bin
// directory and receives the configuration path as its last argument.
type Launcher struct {
	Command string
	Args    []string
	Env     []string
	Logger  *slog.Logger
}

var _ fit.Factory = Launcher{}

// Open starts the helper. It lives until the returned engine is closed or ctx ends.
func (l Launcher) Open(ctx context.Context, dir, configPath string) (fit.Engine, error) {
	if l.Command == "" {
		return nil, errors.New("launch engine: no command configured")
	}
	args := append(append([]string(nil), l.Args...), configPath)
	cmd := exec.CommandContext(ctx, l.Command, args...)
	cmd.Dir = dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	cmd.Stderr = l.stderr(dir)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launch engine: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launch engine: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch engine %s: %w", l.Command, err)
	}
	if l.Logger != nil {
		l.Logger.Debug("engine started", "command", l.Command, "dir", dir, "pid", cmd.Process.Pid)
	}

	eng := NewEngine(NewClient(stdout, stdin), stdin)
	eng.cmd = cmd
	return eng, nil
}

func (l Launcher) stderr(dir string) io.Writer {
	if l.Logger == nil {
		return os.Stderr
	}
	return &logWriter{logger: l.Logger.With("engine_dir", dir)}
}

type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Info("engine", "stderr", string(p))
	return len(p), nil
}
