package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/config"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/exchange/exchangerate"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/handler/rest"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository/memcache"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository/sqlstore"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/service"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Store is the persistent store the application runs on.
type Store interface {
	repository.Store
	Migrate(ctx context.Context) error
}

type App struct {
	config     *config.Config
	logger     *zap.Logger
	clock      clockwork.Clock
	store      Store
	httpServer *http.Server
	shutdowns  []func(context.Context) error
}

// Replaced in tests.
var newStoreFunc = func(ctx context.Context, opts sqlstore.Options, logger *zap.Logger) (Store, error) {
	repo, err := sqlstore.Open(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func NewApp(ctx context.Context, config *config.Config, logger *zap.Logger) (*App, error) {
	store, err := newStoreFunc(ctx, sqlstore.Options{
		Dialect:         sqlstore.Dialect(config.DBDriver),
		DSN:             config.GetDBConnString(),
		ConnectAttempts: config.DBConnectAttempts,
		ConnectDelay:    config.DBConnectDelay,
	}, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	return &App{
		config: config,
		logger: logger,
		clock:  clockwork.NewRealClock(),
		store:  store,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	// Запуск миграций
	if err := a.store.Migrate(ctx); err != nil {
		a.Shutdown()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Инициализация трассировки и метрик
	if err := a.initTelemetry(ctx); err != nil {
		a.Shutdown()
		return err
	}

	// Создание клиента, сервисов и обработчиков
	handler, rateService := a.buildHandler()

	// Удаление устаревших снимков курсов при старте
	if _, err := rateService.Cleanup(ctx); err != nil {
		a.logger.Warn("Startup cleanup failed", zap.Error(err))
	}

	router := rest.NewRouter(handler, rest.RouterConfig{
		ServiceName:   a.config.ServiceName,
		EnableTracing: a.config.EnableTracing,
		EnableMetrics: a.config.EnableMetrics,
	})

	// Запуск HTTP-сервера
	lis, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("failed to listen: %w", err)
	}

	a.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      a.config.RatesAPITimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("Starting HTTP server", zap.String("addr", lis.Addr().String()))

	// Канал для сигналов прерывания
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to serve: %w", err)
		}
	}()

	// Ожидание сигнала завершения или ошибки
	select {
	case <-quit:
		a.logger.Info("Shutting down server...")
		a.Shutdown()
	case err := <-errCh:
		a.logger.Error("Server error", zap.Error(err))
		a.Shutdown()
		return err
	case <-ctx.Done():
		a.logger.Info("Context canceled, shutting down server...")
		a.Shutdown()
	}

	return nil
}

func (a *App) buildHandler() (*rest.Handler, *service.RateService) {
	client := exchangerate.NewClient(
		a.config.RatesAPIURL,
		a.config.RatesAPIKey,
		a.config.RatesAPITimeout,
		a.logger.Named("exchangerate"),
	)

	// Кэш снимков в памяти поверх хранилища, если он включен
	var snapshots repository.SnapshotRepository = a.store
	if a.config.MemoryCacheSize > 0 {
		snapshots = memcache.New(a.store, a.config.MemoryCacheSize, a.clock, a.logger.Named("memcache"))
	}

	rateService := service.NewRateService(a.logger.Named("rates"), snapshots, client, a.clock, a.config.DefaultBaseCurrency)
	conversionService := service.NewConversionService(a.logger.Named("conversion"), rateService)
	historyService := service.NewHistoryService(a.logger.Named("history"), a.store, a.clock)

	handler := rest.NewHandler(a.logger.Named("http"), rateService, conversionService, historyService, a.store, a.clock)
	return handler, rateService
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.config.EnableTracing {
		shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			ServiceName:    a.config.ServiceName,
			ServiceVersion: a.config.ServiceVersion,
			Environment:    a.config.Environment,
			OTLPEndpoint:   a.config.OTLPEndpoint,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		a.shutdowns = append(a.shutdowns, shutdown)
	}

	if a.config.EnableMetrics {
		shutdown, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
			ServiceName:    a.config.ServiceName,
			ServiceVersion: a.config.ServiceVersion,
			Environment:    a.config.Environment,
			HTTPAddr:       a.config.MetricsHTTPAddr,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		a.shutdowns = append(a.shutdowns, shutdown)
	}

	return nil
}

// Shutdown stops the HTTP server, flushes telemetry and closes the store.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Graceful shutdown HTTP-сервера
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		} else {
			a.logger.Info("HTTP server successfully shutdown")
		}
	}

	// Остановка телеметрии в обратном порядке
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](ctx); err != nil {
			a.logger.Error("Failed to shutdown telemetry", zap.Error(err))
		}
	}
	a.shutdowns = nil

	// Закрытие соединения с базой данных
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to close repository", zap.Error(err))
		} else {
			a.logger.Info("Database connection closed")
		}
	}
}
