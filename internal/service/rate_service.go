package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/telemetry"
)

const tracerName = "currency-converter"

// RateSource fetches the current rates for a base currency from the remote provider.
type RateSource interface {
	FetchLatest(ctx context.Context, base string) (map[string]float64, error)
}

// RateService resolves rate snapshots, reusing stored ones while they are fresh.
type RateService struct {
	logger      *zap.Logger
	repo        repository.SnapshotRepository
	source      RateSource
	clock       clockwork.Clock
	tracer      trace.Tracer
	defaultBase string
}

func NewRateService(
	logger *zap.Logger,
	repo repository.SnapshotRepository,
	source RateSource,
	clock clockwork.Clock,
	defaultBase string,
) *RateService {
	return &RateService{
		logger:      logger,
		repo:        repo,
		source:      source,
		clock:       clock,
		tracer:      otel.Tracer(tracerName),
		defaultBase: defaultBase,
	}
}

// GetRates returns the newest snapshot for base fetched within the freshness window.
// Without one it fetches from the remote source and stores the result as a new snapshot.
// A failed fetch is returned as is; stale snapshots are never used as a fallback.
func (s *RateService) GetRates(ctx context.Context, base string) (*model.RateSnapshot, error) {
	base, err := model.NormalizeCurrency(base)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "RateService.GetRates",
		trace.WithAttributes(attribute.String("base_currency", base)))
	defer span.End()

	now := s.clock.Now()
	cached, err := s.repo.GetLatestSnapshot(ctx, base, model.FreshnessThreshold(now))
	switch {
	case err == nil:
		s.logger.Debug("Using cached exchange rates",
			zap.String("base_currency", base),
			zap.Int64("snapshot_id", cached.ID),
			zap.Time("fetched_at", cached.FetchedAt))
		span.SetAttributes(attribute.Bool("cache_hit", true))
		telemetry.RateCacheLookupCounter.WithLabelValues("hit").Inc()
		return cached, nil
	case !errors.Is(err, repository.ErrNotFound):
		span.SetStatus(codes.Error, "Failed to read cached rates")
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache_hit", false))
	telemetry.RateCacheLookupCounter.WithLabelValues("miss").Inc()
	s.logger.Debug("Fetching fresh exchange rates", zap.String("base_currency", base))

	rates, err := s.source.FetchLatest(ctx, base)
	if err != nil {
		s.logger.Error("Failed to fetch exchange rates", zap.Error(err), zap.String("base_currency", base))
		span.SetStatus(codes.Error, "Failed to fetch exchange rates")
		span.RecordError(err)
		telemetry.RateFetchCounter.WithLabelValues(base, "error").Inc()

		if !errors.Is(err, model.ErrFetchFailure) {
			err = fmt.Errorf("%w: %w", model.ErrFetchFailure, err)
		}
		return nil, err
	}
	telemetry.RateFetchCounter.WithLabelValues(base, "success").Inc()

	snapshot := model.RateSnapshot{
		BaseCurrency: base,
		Rates:        rates,
		FetchedAt:    model.FromMillis(model.ToMillis(now)),
	}

	ctxSave, spanSave := s.tracer.Start(ctx, "RateService.SaveSnapshot")
	id, err := s.repo.SaveSnapshot(ctxSave, snapshot)
	if err != nil {
		spanSave.SetStatus(codes.Error, "Failed to save rate snapshot")
		spanSave.RecordError(err)
		spanSave.End()
		return nil, err
	}
	spanSave.End()

	snapshot.ID = id
	s.logger.Info("Stored fresh exchange rates",
		zap.String("base_currency", base),
		zap.Int64("snapshot_id", id),
		zap.Int("rates", len(rates)))

	return &snapshot, nil
}

// Cleanup deletes every snapshot fetched before the freshness window and reports how many were removed.
func (s *RateService) Cleanup(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "RateService.Cleanup")
	defer span.End()

	threshold := model.FreshnessThreshold(s.clock.Now())
	deleted, err := s.repo.DeleteSnapshotsBefore(ctx, threshold)
	if err != nil {
		s.logger.Error("Failed to clean up old rate snapshots", zap.Error(err))
		span.SetStatus(codes.Error, "Cleanup failed")
		span.RecordError(err)
		return 0, err
	}

	telemetry.SnapshotsDeletedCounter.Add(float64(deleted))
	span.SetAttributes(attribute.Int64("deleted", deleted))
	s.logger.Info("Old rate snapshots cleaned up",
		zap.Int64("deleted", deleted),
		zap.Time("threshold", threshold))

	return deleted, nil
}

// AvailableCurrencies lists the currency codes known to the default base snapshot.
func (s *RateService) AvailableCurrencies(ctx context.Context) ([]string, error) {
	snapshot, err := s.GetRates(ctx, s.defaultBase)
	if err != nil {
		return nil, err
	}
	return snapshot.Currencies(), nil
}
