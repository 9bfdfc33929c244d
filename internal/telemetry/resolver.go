package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dainotech/beespace-demo/internal/config"
	"github.com/dainotech/beespace-demo/pkg/database"
	"github.com/dainotech/beespace-demo/pkg/logging"
)

// Factory builds a warehouse client. It is called until it succeeds once.
type Factory func(ctx context.Context) (*Client, error)

// Resolver hands out the process-wide warehouse client, building it on first
// use. Failed builds are not remembered so a later call can pick up fixed
// credentials.
type Resolver struct {
	mu      sync.Mutex
	client  *Client
	factory Factory
}

func NewResolver(factory Factory) *Resolver {
	return &Resolver{factory: factory}
}

// StaticResolver always returns c.
func StaticResolver(c *Client) *Resolver {
	return &Resolver{client: c}
}

func (r *Resolver) Client(ctx context.Context) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}
	if r.factory == nil {
		return nil, &ConfigurationError{Message: "warehouse client is not configured"}
	}
	c, err := r.factory(ctx)
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

// Ping satisfies monitoring.Pinger. An unresolvable client counts as down.
func (r *Resolver) Ping(ctx context.Context) error {
	c, err := r.Client(ctx)
	if err != nil {
		return err
	}
	return c.Ping(ctx)
}

// Close releases the client if one was built.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// WarehouseFactory connects the backend named in cfg. Missing credentials or
// addresses are ConfigurationErrors.
func WarehouseFactory(cfg config.WarehouseConfig, logger logging.Logger, opts ...Option) Factory {
	return warehouseFactory(cfg, logger, os.Getenv, os.ReadFile, opts...)
}

func warehouseFactory(
	cfg config.WarehouseConfig,
	logger logging.Logger,
	lookup func(string) string,
	readFile func(string) ([]byte, error),
	opts ...Option,
) Factory {
	dialect := DialectFor(cfg.Backend, cfg.Table)
	opts = append([]Option{
		WithLogger(logger),
		WithLimits(Limits{
			MaxRows:        cfg.MaxRows,
			MaxBytesBilled: cfg.MaxBytesBilled,
			MaxQueryBytes:  cfg.MaxQueryBytes,
		}),
	}, opts...)

	return func(ctx context.Context) (*Client, error) {
		var (
			querier database.Querier
			err     error
		)
		switch cfg.Backend {
		case config.BackendClickHouse:
			if len(cfg.ClickHouse.Addr) == 0 {
				return nil, &ConfigurationError{Message: "CLICKHOUSE_ADDR is not set"}
			}
			chCfg := cfg.ClickHouse
			chCfg.ReadOnly = true
			querier, err = database.ConnectClickHouse(ctx, chCfg, logger)
		case config.BackendPostgres:
			if cfg.Postgres.URL == "" {
				return nil, &ConfigurationError{Message: "POSTGRES_URL is not set"}
			}
			pgCfg := cfg.Postgres
			pgCfg.ReadOnly = true
			querier, err = database.ConnectPostgres(ctx, pgCfg, logger)
		case config.BackendBigQuery, "":
			querier, err = connectBigQuery(ctx, cfg, logger, lookup, readFile)
		default:
			return nil, &ConfigurationError{Message: fmt.Sprintf("unknown warehouse backend %q", cfg.Backend)}
		}
		if err != nil {
			return nil, err
		}
		return NewClient(querier, dialect, opts...), nil
	}
}

func connectBigQuery(
	ctx context.Context,
	cfg config.WarehouseConfig,
	logger logging.Logger,
	lookup func(string) string,
	readFile func(string) ([]byte, error),
) (database.Querier, error) {
	sa, err := database.ResolveCredentials(logger,
		database.EnvCredentials(cfg.ServiceAccountEnv, lookup),
		database.FileCredentials(cfg.ServiceAccountFile, readFile),
	)
	if err != nil {
		if errors.Is(err, database.ErrNoCredentials) {
			return nil, &ConfigurationError{Message: "Google credentials not found", Err: err}
		}
		return nil, err
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = sa.ProjectID
	}
	return database.ConnectBigQuery(ctx, database.BigQueryConfig{
		ProjectID:   projectID,
		Credentials: sa,
	}, logger)
}
