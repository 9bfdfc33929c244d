// Package cli implements dainoctl, the operator tool for checking the
// warehouse and exercising the chat agent from a terminal.
package cli

import (
	"context"
	"time"

	"github.com/dainotech/beespace-demo/internal/chat"
	"github.com/dainotech/beespace-demo/internal/config"
	"github.com/dainotech/beespace-demo/internal/dashboard"
	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/llm"
	"github.com/dainotech/beespace-demo/pkg/logging"
)

// WarehouseResolver hands out the shared telemetry client.
type WarehouseResolver interface {
	Client(ctx context.Context) (*telemetry.Client, error)
}

// App is what the commands run against.
type App struct {
	Warehouse   WarehouseResolver
	Dashboard   dashboard.Source
	Chat        chat.TurnRunner
	Dialect     telemetry.Dialect
	ChatTimeout time.Duration
	Close       func() error
}

// AppFactory builds an App on demand so commands like version never touch
// the environment.
type AppFactory func(ctx context.Context, logger logging.Logger) (*App, error)

// DefaultApp wires the App from the process environment.
func DefaultApp(ctx context.Context, logger logging.Logger) (*App, error) {
	cfg := config.LoadConfig()
	dialect := telemetry.DialectFor(cfg.Warehouse.Backend, cfg.Warehouse.Table)
	resolver := telemetry.NewResolver(telemetry.WarehouseFactory(cfg.Warehouse, logger))

	var model llm.Model
	if m, err := llm.NewModel(cfg.LLM); err != nil {
		logger.WithError(err).Warn("LLM backend unavailable; ask will fail")
	} else {
		model = m
	}

	return &App{
		Warehouse: resolver,
		Dashboard: dashboard.NewService(dashboard.Config{
			Warehouse:    resolver,
			SiteCacheTTL: cfg.SiteCacheTTL,
			Logger:       logger,
		}),
		Chat: chat.NewOrchestrator(chat.OrchestratorConfig{
			Model:       model,
			ModelConfig: cfg.LLM,
			Warehouse:   resolver,
			Dialect:     dialect,
			MaxRows:     cfg.Warehouse.MaxRows,
			Logger:      logger,
		}),
		Dialect:     dialect,
		ChatTimeout: cfg.ChatTimeout,
		Close:       resolver.Close,
	}, nil
}
