// Command server runs the account and session HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/codeai/pkg/config"
	"github.com/dmitrymomot/codeai/pkg/environment"
	"github.com/dmitrymomot/codeai/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := environment.Parse(cfg.Environment)
	log := logger.New(
		logger.WithEnvironment(env, cfg.ServiceName),
		logger.WithContextExtractors(requestIDExtractor),
	)
	if err := config.DotenvError(); err != nil {
		log.Warn("dotenv file ignored", logger.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := newApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	if err := application.run(ctx); err != nil {
		return fmt.Errorf("run application: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}
