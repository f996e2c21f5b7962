package mocks

import (
	"context"

	"github.com/rpggio/phasefold/internal/fit"
	"github.com/stretchr/testify/mock"
)

// Engine is a mock for fit.Engine.
type Engine struct {
	mock.Mock
}

func (m *Engine) Setup(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Engine) ROI(ctx context.Context, name string) (fit.Snapshot, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(fit.Snapshot), args.Error(1)
}

func (m *Engine) SetSpectralPars(ctx context.Context, name string, pars map[string]float64) error {
	args := m.Called(ctx, name, pars)
	return args.Error(0)
}

func (m *Engine) FreeSources(ctx context.Context, distance float64, pars []string) error {
	args := m.Called(ctx, distance, pars)
	return args.Error(0)
}

func (m *Engine) FreeSource(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *Engine) Fit(ctx context.Context) (fit.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(fit.Result), args.Error(1)
}

func (m *Engine) WriteROI(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

func (m *Engine) SED(ctx context.Context, name, sedType string) (fit.SED, error) {
	args := m.Called(ctx, name, sedType)
	return args.Get(0).(fit.SED), args.Error(1)
}

func (m *Engine) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Factory is a mock for fit.Factory.
type Factory struct {
	mock.Mock
}

func (m *Factory) Open(ctx context.Context, dir, configPath string) (fit.Engine, error) {
	args := m.Called(ctx, dir, configPath)
	if eng, ok := args.Get(0).(fit.Engine); ok {
		return eng, args.Error(1)
	}
	return nil, args.Error(1)
}
