package service

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository"
)

type HistoryService struct {
	logger *zap.Logger
	repo   repository.HistoryRepository
	clock  clockwork.Clock
	tracer trace.Tracer
}

func NewHistoryService(logger *zap.Logger, repo repository.HistoryRepository, clock clockwork.Clock) *HistoryService {
	return &HistoryService{
		logger: logger,
		repo:   repo,
		clock:  clock,
		tracer: otel.Tracer(tracerName),
	}
}

// Record appends a history entry for a completed conversion, stamped with the current time.
func (s *HistoryService) Record(ctx context.Context, result model.ConversionResult) (*model.ConversionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryService.Record")
	defer span.End()

	record := model.NewConversionRecord(result, model.FromMillis(model.ToMillis(s.clock.Now())))

	id, err := s.repo.SaveConversion(ctx, record)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to save conversion")
		span.RecordError(err)
		return nil, err
	}
	record.ID = id

	span.SetAttributes(attribute.Int64("record_id", id))
	return &record, nil
}

// List returns the full history, most recent first.
func (s *HistoryService) List(ctx context.Context) ([]model.ConversionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryService.List")
	defer span.End()

	records, err := s.repo.ListConversions(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to list conversions")
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}
