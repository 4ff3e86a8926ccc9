package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/config"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/app"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	readConfig, err := config.ReadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера
	logger.BuildLogger(readConfig.LogLevel)
	applogger := logger.Logger().Named("main")
	defer func() {
		_ = applogger.Sync()
	}()

	applogger.Info("Starting currency converter",
		zap.String("version", readConfig.ServiceVersion),
		zap.String("db_driver", readConfig.DBDriver),
		zap.String("rates_api_url", readConfig.RatesAPIURL),
		zap.String("default_base", readConfig.DefaultBaseCurrency))

	// Логирование информации о конфигурации телеметрии
	if readConfig.EnableTracing {
		applogger.Info("OpenTelemetry tracing enabled",
			zap.String("otlp_endpoint", readConfig.OTLPEndpoint))
	} else {
		applogger.Info("OpenTelemetry tracing disabled")
	}

	if readConfig.EnableMetrics {
		applogger.Info("Prometheus metrics enabled",
			zap.String("metrics_http_addr", readConfig.MetricsHTTPAddr))
	} else {
		applogger.Info("Prometheus metrics disabled")
	}

	ctx := context.Background()

	// Создание и инициализация приложения
	application, err := app.NewApp(ctx, readConfig, applogger)
	if err != nil {
		applogger.Fatal("Failed to initialize application", zap.Error(err))
	}

	// Запуск приложения
	if err := application.Run(ctx); err != nil {
		applogger.Fatal("Application error", zap.Error(err))
	}
}
