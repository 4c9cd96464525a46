// Package main serves an in-memory catalog for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/fakecatalog"
	"github.com/vyrodovalexey/catalog-cache/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("fakecatalog", flag.ContinueOnError)
	port := fs.Int("port", 9090, "listen port")
	records := fs.Int("records", 20, "number of seeded records")
	latency := fs.Duration("latency", 0, "artificial delay added to every response")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	fake := fakecatalog.New(store.NewMemoryStore(fakecatalog.SampleRecords(*records)...), logger)
	fake.SetLatency(*latency)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("fake catalog listening",
			zap.String("address", srv.Addr),
			zap.Int("records", *records),
			zap.Duration("latency", *latency),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serverErrors:
		if ok {
			logger.Error("server error", zap.Error(err))
			return 1
		}
	case <-shutdown:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("fake catalog stopped")
	return 0
}
