package mocks

import (
	"context"

	"github.com/rpggio/phasefold/internal/domain/journal"
	"github.com/rpggio/phasefold/internal/domain/run"
	"github.com/stretchr/testify/mock"
)

// RunRepository is a mock for run.Repository.
type RunRepository struct {
	mock.Mock
}

func (m *RunRepository) Create(ctx context.Context, r *run.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *RunRepository) Get(ctx context.Context, id string) (*run.Run, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*run.Run); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) Finish(ctx context.Context, r *run.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *RunRepository) List(ctx context.Context, opts run.ListOptions) ([]run.Run, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]run.Run); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RunRepository) AddBin(ctx context.Context, bin *run.BinOutcome) error {
	args := m.Called(ctx, bin)
	return args.Error(0)
}

func (m *RunRepository) Bins(ctx context.Context, runID string) ([]run.BinOutcome, error) {
	args := m.Called(ctx, runID)
	if list, ok := args.Get(0).([]run.BinOutcome); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// JournalRepository is a mock for journal.Repository.
type JournalRepository struct {
	mock.Mock
}

func (m *JournalRepository) Append(ctx context.Context, entry *journal.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *JournalRepository) List(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]journal.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
