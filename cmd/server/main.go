// Package main is the entry point for the catalog cache daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/catalog-cache/internal/auth"
	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
	"github.com/vyrodovalexey/catalog-cache/internal/config"
	"github.com/vyrodovalexey/catalog-cache/internal/products"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
	"github.com/vyrodovalexey/catalog-cache/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("auth_mode", cfg.AuthMode),
		zap.String("catalog_base_url", cfg.CatalogBaseURL),
		zap.Duration("records_stale_time", cfg.RecordsStaleTime),
		zap.Duration("categories_stale_time", cfg.CategoriesStaleTime),
		zap.Int("page_size", cfg.PageSize),
	)

	srv, err := build(cfg, logger)
	if err != nil {
		logger.Error("failed to build server", zap.Error(err))
		return 1
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// build wires the catalog client, the query cache, the products service and
// the authenticator into a server.
func build(cfg *config.Config, logger *zap.Logger) (*server.Server, error) {
	client, err := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, logger.Named("catalog"))
	if err != nil {
		return nil, fmt.Errorf("creating catalog client: %w", err)
	}

	cache := query.New(
		products.CacheConfig(cfg.RecordsStaleTime, cfg.CategoriesStaleTime, cfg.FetchTimeout),
		nil,
		logger.Named("query"),
	)
	svc := products.New(client, cache, cfg.PageSize, logger.Named("products"))

	authenticator, err := auth.New(cfg.AuthMode, cfg.BasicAuthUsers, cfg.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}
	if authenticator == nil {
		logger.Info("authentication disabled")
	} else {
		logger.Info("authentication enabled", zap.String("method", string(authenticator.Method())))
	}

	return server.New(cfg, logger, svc, authenticator), nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
