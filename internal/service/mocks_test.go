package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
)

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot model.RateSnapshot) (int64, error) {
	args := m.Called(ctx, snapshot)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSnapshotRepository) GetLatestSnapshot(ctx context.Context, base string, notBefore time.Time) (*model.RateSnapshot, error) {
	args := m.Called(ctx, base, notBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RateSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) DeleteSnapshotsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) SaveConversion(ctx context.Context, record model.ConversionRecord) (int64, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHistoryRepository) ListConversions(ctx context.Context) ([]model.ConversionRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConversionRecord), args.Error(1)
}

type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) FetchLatest(ctx context.Context, base string) (map[string]float64, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

type MockRateResolver struct {
	mock.Mock
}

func (m *MockRateResolver) GetRates(ctx context.Context, base string) (*model.RateSnapshot, error) {
	args := m.Called(ctx, base)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RateSnapshot), args.Error(1)
}
