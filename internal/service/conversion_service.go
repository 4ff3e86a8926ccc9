package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/telemetry"
)

// RateResolver is the part of RateService the converter depends on.
type RateResolver interface {
	GetRates(ctx context.Context, base string) (*model.RateSnapshot, error)
}

type ConversionService struct {
	logger *zap.Logger
	rates  RateResolver
	tracer trace.Tracer
}

func NewConversionService(logger *zap.Logger, rates RateResolver) *ConversionService {
	return &ConversionService{
		logger: logger,
		rates:  rates,
		tracer: otel.Tracer(tracerName),
	}
}

// ParseAmount parses user input into a positive amount.
func ParseAmount(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("%w: amount is required", model.ErrValidation)
	}

	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", model.ErrValidation, input)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be greater than zero", model.ErrValidation)
	}

	return d.InexactFloat64(), nil
}

func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: amount is not a number", model.ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", model.ErrValidation)
	}
	return nil
}

// Convert multiplies amount by the from→to rate of the resolved snapshot.
// Input is validated before any rate lookup.
func (s *ConversionService) Convert(ctx context.Context, from, to string, amount float64) (*model.ConversionResult, error) {
	result, err := s.convert(ctx, from, to, amount)
	if err != nil {
		telemetry.ConversionCounter.WithLabelValues(errorKind(err)).Inc()
		return nil, err
	}
	telemetry.ConversionCounter.WithLabelValues("success").Inc()
	return result, nil
}

func (s *ConversionService) convert(ctx context.Context, from, to string, amount float64) (*model.ConversionResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	from, err := model.NormalizeCurrency(from)
	if err != nil {
		return nil, err
	}
	to, err = model.NormalizeCurrency(to)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "ConversionService.Convert",
		trace.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		))
	defer span.End()

	snapshot, err := s.rates.GetRates(ctx, from)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to resolve rates")
		span.RecordError(err)
		return nil, err
	}

	rate, ok := snapshot.Rate(to)
	if !ok {
		s.logger.Warn("Exchange rate not available",
			zap.String("from", from),
			zap.String("to", to),
			zap.Int64("snapshot_id", snapshot.ID))
		err := fmt.Errorf("%w: exchange rate not available for %s", model.ErrRateUnavailable, to)
		span.SetStatus(codes.Error, "Rate unavailable")
		span.RecordError(err)
		return nil, err
	}

	result := &model.ConversionResult{
		FromCurrency: from,
		ToCurrency:   to,
		Amount:       amount,
		Result:       amount * rate,
		Rate:         rate,
	}

	span.SetAttributes(attribute.Float64("rate", rate))
	s.logger.Info("Converted amount",
		zap.String("from", from),
		zap.String("to", to),
		zap.Float64("amount", amount),
		zap.Float64("rate", rate),
		zap.Float64("result", result.Result))

	return result, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "validation_error"
	case errors.Is(err, model.ErrRateUnavailable):
		return "rate_unavailable"
	case errors.Is(err, model.ErrFetchFailure):
		return "fetch_failure"
	default:
		return "error"
	}
}
