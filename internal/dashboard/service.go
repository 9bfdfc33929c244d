// Package dashboard serves the site list and hourly readings behind the
// telemetry dashboard.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/cache"
	"github.com/dainotech/beespace-demo/pkg/logging"
	"github.com/dainotech/beespace-demo/pkg/redis"
)

const sitesKey = "sites"

// WarehouseResolver hands out the shared telemetry client.
type WarehouseResolver interface {
	Client(ctx context.Context) (*telemetry.Client, error)
}

// ReadingsStore is a shared cache for aggregated readings. Nil disables it.
type ReadingsStore interface {
	Get(ctx context.Context, key string) ([]telemetry.SensorReading, bool, error)
	Set(ctx context.Context, key string, value []telemetry.SensorReading) error
}

var _ ReadingsStore = (*redis.JSONStore[[]telemetry.SensorReading])(nil)

type Config struct {
	Warehouse    WarehouseResolver
	Readings     ReadingsStore
	SiteCacheTTL time.Duration
	// OnCacheResult receives hit/miss/stale outcomes of the site cache.
	OnCacheResult func(result string)
	Logger        logging.Logger
}

type Service struct {
	warehouse WarehouseResolver
	sites     *cache.Cache[[]string]
	readings  ReadingsStore
	logger    logging.Logger
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	ttl := cfg.SiteCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		warehouse: cfg.Warehouse,
		sites: cache.New[[]string](cache.Options{
			TTL:                  ttl,
			StaleWhileRevalidate: ttl,
			MaxEntries:           4,
		}, cache.Hooks{OnResult: cfg.OnCacheResult}),
		readings: cfg.Readings,
		logger:   logger,
	}
}

// Sites returns the known site ids. The list is served from memory and
// refreshed in the background once stale.
func (s *Service) Sites(ctx context.Context) ([]string, error) {
	return s.sites.Get(ctx, sitesKey, func(ctx context.Context, _ string) ([]string, error) {
		client, err := s.warehouse.Client(ctx)
		if err != nil {
			return nil, err
		}
		return client.Sites(ctx)
	})
}

// Readings returns hourly readings for a site. Results are cached in the
// readings store when one is configured; store failures only log.
func (s *Service) Readings(ctx context.Context, siteID int64, from, to time.Time) ([]telemetry.SensorReading, error) {
	key := readingsKey(siteID, from, to)
	if s.readings != nil {
		cached, ok, err := s.readings.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("Readings cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	client, err := s.warehouse.Client(ctx)
	if err != nil {
		return nil, err
	}
	readings, err := client.Readings(ctx, siteID, from, to)
	if err != nil {
		return nil, err
	}

	if s.readings != nil {
		if err := s.readings.Set(ctx, key, readings); err != nil {
			s.logger.WithError(err).Warn("Readings cache write failed")
		}
	}
	return readings, nil
}

// readingsKey keys on the exact bounds. Default windows are already aligned
// to the hour by DefaultWindow.
func readingsKey(siteID int64, from, to time.Time) string {
	return fmt.Sprintf("%d:%d:%d", siteID, from.UTC().UnixNano(), to.UTC().UnixNano())
}
