package config

import (
	"errors"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "WAREHOUSE_BACKEND", "WAREHOUSE_PROJECT_ID", "NEXT_PUBLIC_FIREBASE_PROJECT_ID",
		"TELEMETRY_TABLE", "CLICKHOUSE_ADDR", "POSTGRES_URL", "QUERY_MAX_ROWS", "QUERY_MAX_BYTES_BILLED",
		"CHAT_TIMEOUT", "MCP_ENABLED", "MCP_SERVICE_TOKEN", "LLM_PROVIDER", "LLM_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadConfig()

	if cfg.Port != DefaultPort {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.Warehouse.Backend != BackendBigQuery {
		t.Fatalf("backend = %q", cfg.Warehouse.Backend)
	}
	if cfg.Warehouse.Table != "daino-platform.telemetry_history.readings" {
		t.Fatalf("table = %q", cfg.Warehouse.Table)
	}
	if cfg.Warehouse.MaxRows != DefaultMaxRows {
		t.Fatalf("max rows = %d", cfg.Warehouse.MaxRows)
	}
	if cfg.ChatTimeout != DefaultChatTimeout {
		t.Fatalf("chat timeout = %s", cfg.ChatTimeout)
	}
	if cfg.MCPEnabled {
		t.Fatal("mcp should default off")
	}
	if cfg.LLM.Model != "gemini-2.0-flash-exp" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
}

func TestLoadConfig_ProjectFallbackAndBackendTables(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_FIREBASE_PROJECT_ID", "beespace-demo-app")
	if got := LoadConfig().Warehouse.Table; got != "beespace-demo-app.telemetry_history.readings" {
		t.Fatalf("table = %q", got)
	}

	t.Setenv("WAREHOUSE_BACKEND", "ClickHouse")
	t.Setenv("CLICKHOUSE_ADDR", "ch-1:9000,ch-2:9000")
	t.Setenv("CHAT_TIMEOUT", "15")
	cfg := LoadConfig()
	if cfg.Warehouse.Backend != BackendClickHouse || cfg.Warehouse.Table != "telemetry_history.readings" {
		t.Fatalf("unexpected warehouse config %+v", cfg.Warehouse)
	}
	if len(cfg.Warehouse.ClickHouse.Addr) != 2 {
		t.Fatalf("addrs = %v", cfg.Warehouse.ClickHouse.Addr)
	}
	if cfg.ChatTimeout != 15*time.Second {
		t.Fatalf("chat timeout = %s", cfg.ChatTimeout)
	}
}

func TestMCPMount(t *testing.T) {
	clearEnv(t)
	if mount, err := LoadConfig().MCPMount(); mount || err != nil {
		t.Fatalf("default: mount=%v err=%v", mount, err)
	}

	t.Setenv("MCP_ENABLED", "true")
	mount, err := LoadConfig().MCPMount()
	if mount || !errors.Is(err, ErrMCPTokenMissing) {
		t.Fatalf("enabled without token: mount=%v err=%v", mount, err)
	}

	t.Setenv("MCP_SERVICE_TOKEN", "s3cret")
	if mount, err := LoadConfig().MCPMount(); !mount || err != nil {
		t.Fatalf("enabled with token: mount=%v err=%v", mount, err)
	}
}
