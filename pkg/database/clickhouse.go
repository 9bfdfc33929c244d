package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/dainotech/beespace-demo/pkg/logging"
)

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Addr        []string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
	Debug       bool
	// ReadOnly sets readonly=1 so the server refuses writes, DDL and
	// settings changes on this connection.
	ReadOnly bool
}

// DefaultClickHouseConfig returns default ClickHouse configuration
func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Addr:        []string{"127.0.0.1:9000"},
		Database:    "default",
		Username:    "default",
		DialTimeout: 5 * time.Second,
	}
}

// ParseClickHouseAddrs splits a comma separated address list.
func ParseClickHouseAddrs(raw string) []string {
	var addrs []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// ConnectClickHouse opens a database/sql ClickHouse pool, verifies it with a
// ping and wraps it as a Querier using named binds.
func ConnectClickHouse(ctx context.Context, cfg ClickHouseConfig, logger logging.Logger) (*SQLQuerier, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("clickhouse address is required")
	}
	var settings clickhouse.Settings
	if cfg.ReadOnly {
		settings = clickhouse.Settings{"readonly": 1}
	}
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings:    settings,
		DialTimeout: cfg.DialTimeout,
		Debug:       cfg.Debug,
	})

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		logger.WithError(err).Error("Failed to ping ClickHouse")
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	logger.WithFields(logging.Fields{
		"addr":     cfg.Addr,
		"database":  cfg.Database,
		"read_only": cfg.ReadOnly,
	}).Info("Connected to ClickHouse")

	return NewSQLQuerier(db, BindNamed), nil
}
