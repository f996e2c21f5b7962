package rpc

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/phasefold/internal/fit"
	"github.com/rpggio/phasefold/internal/fit/mocks"
	"github.com/rpggio/phasefold/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type served struct {
	engine *Engine
	client *Client
	done   chan error
}

func serve(t *testing.T, eng fit.Engine) served {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := Serve(context.Background(), reqR, respW, eng)
		_ = respW.Close()
		done <- err
	}()
	t.Cleanup(func() {
		_ = reqW.Close()
		_ = respR.Close()
	})
	client := NewClient(respR, reqW)
	return served{engine: NewEngine(client, reqW), client: client, done: done}
}

func TestEngine_DryRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "phase_0.0-0.5.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("selection: {}\n"), 0o644))

	dry := fit.NewDryRun(dir, cfg)
	s := serve(t, dry)
	ctx := context.Background()

	require.NoError(t, s.engine.Setup(ctx))
	require.NoError(t, s.engine.SetSpectralPars(ctx, "J0835-4510", map[string]float64{"Index": 2.5}))

	snap, err := s.engine.ROI(ctx, "J0835-4510")
	require.NoError(t, err)
	require.Equal(t, "J0835-4510", snap.Name)
	require.InDelta(t, 2.5, snap.Params["Index"], 0)
	require.InDelta(t, 1e-11, snap.Params["Prefactor"], 0)

	require.NoError(t, s.engine.FreeSources(ctx, 3, []string{"norm"}))
	require.NoError(t, s.engine.FreeSource(ctx, "J0835-4510"))

	res, err := s.engine.Fit(ctx)
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.Equal(t, 3, res.FitQuality)

	require.NoError(t, s.engine.WriteROI(ctx, "fit_model.npy"))
	require.FileExists(t, filepath.Join(dir, "fit_model.npy"))

	sed, err := s.engine.SED(ctx, "J0835-4510", "likelihood")
	require.NoError(t, err)
	require.Equal(t, "likelihood", sed.Type)

	require.NoError(t, s.engine.Close())
	require.NoError(t, <-s.done)
	require.Equal(t, []string{
		"setup", "set_spectral_pars", "roi", "free_sources", "free_source",
		"fit", "write_roi", "sed", "close",
	}, dry.Calls())
}

func TestEngine_EngineErrorIsReported(t *testing.T) {
	eng := &mocks.Engine{}
	eng.On("Fit", mock.Anything).Return(fit.Result{}, errors.New("minimizer diverged"))
	eng.On("Close").Return(nil)

	s := serve(t, eng)
	_, err := s.engine.Fit(context.Background())
	require.Error(t, err)

	var rpcErr *transport.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, transport.ErrInternal, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "minimizer diverged")

	// The connection survives engine errors.
	eng.On("Setup", mock.Anything).Return(nil)
	require.NoError(t, s.engine.Setup(context.Background()))

	require.NoError(t, s.engine.Close())
	require.NoError(t, <-s.done)
	eng.AssertExpectations(t)
}

func TestServe_BadRequests(t *testing.T) {
	eng := &mocks.Engine{}
	eng.On("Close").Return(nil)
	s := serve(t, eng)
	ctx := context.Background()

	var rpcErr *transport.Error
	err := s.client.Call(ctx, "minimize_everything", nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, transport.ErrMethodNotFound, rpcErr.Code)

	err = s.client.Call(ctx, MethodROI, nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, transport.ErrInvalidParams, rpcErr.Code)

	err = s.client.Call(ctx, MethodWriteROI, map[string]int{"filename": 7}, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, transport.ErrInvalidParams, rpcErr.Code)

	require.NoError(t, s.engine.Close())
	require.NoError(t, <-s.done)
	eng.AssertNotCalled(t, "ROI", mock.Anything, mock.Anything)
}

func TestServe_EOFClosesEngine(t *testing.T) {
	eng := &mocks.Engine{}
	eng.On("Close").Return(nil)

	reqR, reqW := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- Serve(context.Background(), reqR, io.Discard, eng) }()

	require.NoError(t, reqW.Close())
	require.NoError(t, <-done)
	eng.AssertCalled(t, "Close")
}

func TestClient_CancelBreaksConnection(t *testing.T) {
	respR, respW := io.Pipe()
	t.Cleanup(func() { _ = respW.Close() })
	client := NewClient(respR, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Call(ctx, MethodFit, nil, nil)
	require.ErrorIs(t, err, context.Canceled)

	err = client.Call(context.Background(), MethodSetup, nil, nil)
	require.ErrorIs(t, err, ErrBroken)
}

func TestLauncher_RequiresCommand(t *testing.T) {
	_, err := Launcher{}.Open(context.Background(), t.TempDir(), "cfg.yaml")
	require.Error(t, err)
}
