// Package config assembles the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/dainotech/beespace-demo/pkg/config"
	"github.com/dainotech/beespace-demo/pkg/database"
	"github.com/dainotech/beespace-demo/pkg/llm"
)

// Warehouse backends.
const (
	BackendBigQuery   = "bigquery"
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
)

const (
	DefaultPort           = "18020"
	DefaultProjectID      = "daino-platform"
	DefaultServiceAccount = "service-account.json"
	DefaultMaxRows        = 500
	DefaultMaxQueryBytes  = 20000
	DefaultChatTimeout    = 60 * time.Second
)

type WarehouseConfig struct {
	Backend            string
	ProjectID          string
	Table              string
	ServiceAccountEnv  string
	ServiceAccountFile string
	ClickHouse         database.ClickHouseConfig
	Postgres           database.Config
	MaxBytesBilled     int64
	MaxRows            int
	MaxQueryBytes      int
}

type Config struct {
	Port              string
	LLM               llm.Config
	Warehouse         WarehouseConfig
	ChatTimeout       time.Duration
	RedisURL          string
	DashboardCacheTTL time.Duration
	SiteCacheTTL      time.Duration
	MCPEnabled        bool
	MCPToken          string
}

// LoadConfig reads the environment. It never fails on missing secrets:
// those surface as configuration errors when a request needs them.
func LoadConfig() Config {
	projectID := pkgconfig.GetEnvFirst(DefaultProjectID, "WAREHOUSE_PROJECT_ID", "NEXT_PUBLIC_FIREBASE_PROJECT_ID")

	ch := database.DefaultClickHouseConfig()
	if addrs := database.ParseClickHouseAddrs(pkgconfig.GetEnv("CLICKHOUSE_ADDR", "")); len(addrs) > 0 {
		ch.Addr = addrs
	}
	ch.Database = pkgconfig.GetEnv("CLICKHOUSE_DATABASE", "telemetry_history")
	ch.Username = pkgconfig.GetEnv("CLICKHOUSE_USER", ch.Username)
	ch.Password = pkgconfig.GetEnv("CLICKHOUSE_PASSWORD", "")

	pg := database.DefaultConfig()
	pg.URL = pkgconfig.GetEnv("POSTGRES_URL", "")

	backend := strings.ToLower(pkgconfig.GetEnv("WAREHOUSE_BACKEND", BackendBigQuery))

	return Config{
		Port: pkgconfig.GetEnv("PORT", DefaultPort),
		LLM:  llm.LoadConfig(),
		Warehouse: WarehouseConfig{
			Backend:            backend,
			ProjectID:          projectID,
			Table:              pkgconfig.GetEnv("TELEMETRY_TABLE", defaultTable(backend, projectID)),
			ServiceAccountEnv:  "GOOGLE_SERVICE_ACCOUNT_JSON",
			ServiceAccountFile: pkgconfig.GetEnv("SERVICE_ACCOUNT_FILE", DefaultServiceAccount),
			ClickHouse:         ch,
			Postgres:           pg,
			MaxBytesBilled:     pkgconfig.GetEnvInt64("QUERY_MAX_BYTES_BILLED", 0),
			MaxRows:            pkgconfig.GetEnvInt("QUERY_MAX_ROWS", DefaultMaxRows),
			MaxQueryBytes:      pkgconfig.GetEnvInt("QUERY_MAX_LENGTH", DefaultMaxQueryBytes),
		},
		ChatTimeout:       pkgconfig.GetEnvDuration("CHAT_TIMEOUT", DefaultChatTimeout),
		RedisURL:          pkgconfig.GetEnv("REDIS_URL", ""),
		DashboardCacheTTL: pkgconfig.GetEnvDuration("DASHBOARD_CACHE_TTL", 5*time.Minute),
		SiteCacheTTL:      pkgconfig.GetEnvDuration("SITE_CACHE_TTL", 10*time.Minute),
		MCPEnabled:        pkgconfig.GetEnvBool("MCP_ENABLED", false),
		MCPToken:          pkgconfig.GetEnv("MCP_SERVICE_TOKEN", ""),
	}
}

func defaultTable(backend, projectID string) string {
	switch backend {
	case BackendClickHouse:
		return "telemetry_history.readings"
	case BackendPostgres:
		return "readings"
	default:
		return fmt.Sprintf("%s.telemetry_history.readings", projectID)
	}
}

// ErrMCPTokenMissing is returned when the MCP endpoint is enabled without a
// service token.
var ErrMCPTokenMissing = errors.New("MCP_ENABLED is set but MCP_SERVICE_TOKEN is empty")

// MCPMount reports whether /mcp should be mounted. An enabled endpoint with no
// token is refused rather than served unauthenticated.
func (c Config) MCPMount() (bool, error) {
	if !c.MCPEnabled {
		return false, nil
	}
	if strings.TrimSpace(c.MCPToken) == "" {
		return false, ErrMCPTokenMissing
	}
	return true, nil
}
