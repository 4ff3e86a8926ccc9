package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	HTTPAddr       string
}

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateFetchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_fetch_total",
			Help: "Total number of remote rate fetches",
		},
		[]string{"base", "status"},
	)

	RateCacheLookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_cache_lookups_total",
			Help: "Rate snapshot lookups by outcome",
		},
		[]string{"result"},
	)

	ConversionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversions_total",
			Help: "Total number of currency conversions",
		},
		[]string{"status"},
	)

	SnapshotsDeletedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_snapshots_deleted_total",
			Help: "Expired rate snapshots removed by cleanup",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RateFetchCounter)
	prometheus.MustRegister(RateCacheLookupCounter)
	prometheus.MustRegister(ConversionCounter)
	prometheus.MustRegister(SnapshotsDeletedCounter)
}

// InitMetrics installs the OpenTelemetry Prometheus exporter and serves /metrics on config.HTTPAddr.
// The returned function stops the metrics server and the meter provider.
func InitMetrics(ctx context.Context, config MetricsConfig, logger *zap.Logger) (func(context.Context) error, error) {
	logger.Info("Initializing Prometheus metrics",
		zap.String("service", config.ServiceName),
		zap.String("endpoint", config.HTTPAddr))

	// Создаем ресурс с информацией о сервисе
	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, err
	}

	// Экспортер Prometheus для метрик OpenTelemetry
	exporter, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// Глобальный провайдер метрик
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	// Отдельный HTTP-сервер для /metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         config.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server for Prometheus metrics", zap.String("addr", config.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start metrics HTTP server", zap.Error(err))
		}
	}()

	logger.Info("Prometheus metrics successfully initialized")

	// Остановка сервера метрик и провайдера
	return func(ctx context.Context) error {
		logger.Info("Shutting down metrics provider")
		return errors.Join(server.Shutdown(ctx), meterProvider.Shutdown(ctx))
	}, nil
}
