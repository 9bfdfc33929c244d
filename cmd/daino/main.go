package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dainotech/beespace-demo/internal/chat"
	"github.com/dainotech/beespace-demo/internal/config"
	"github.com/dainotech/beespace-demo/internal/dashboard"
	"github.com/dainotech/beespace-demo/internal/mcpspoke"
	"github.com/dainotech/beespace-demo/internal/telemetry"
	pkgconfig "github.com/dainotech/beespace-demo/pkg/config"
	"github.com/dainotech/beespace-demo/pkg/llm"
	"github.com/dainotech/beespace-demo/pkg/logging"
	"github.com/dainotech/beespace-demo/pkg/middleware"
	"github.com/dainotech/beespace-demo/pkg/monitoring"
	"github.com/dainotech/beespace-demo/pkg/redis"
	"github.com/dainotech/beespace-demo/pkg/resilience"
	"github.com/dainotech/beespace-demo/pkg/server"
	"github.com/dainotech/beespace-demo/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("daino")

	// Load environment variables
	pkgconfig.LoadEnv(logger)

	logger.WithField("version", version.String()).Info("Starting DAINO (telemetry chat agent)")

	cfg := config.LoadConfig()
	dialect := telemetry.DialectFor(cfg.Warehouse.Backend, cfg.Warehouse.Table)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("daino", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("daino", version.Version, version.GitCommit)

	dbQueries, dbDuration := metricsCollector.CreateDatabaseMetrics()
	chatTurns, chatToolCalls, chatDuration := metricsCollector.CreateChatMetrics()
	cacheResults := metricsCollector.NewCounter("cache_results_total", "Cache lookups by outcome", []string{"cache", "result"})
	spokeCalls := metricsCollector.NewCounter("mcp_tool_calls_total", "MCP tool calls by status", []string{"tool", "status"})
	breakerMetrics := resilience.BreakerMetrics{
		State:       metricsCollector.NewGauge("circuit_breaker_state", "Circuit breaker state (0=closed, 1=half-open, 2=open)", []string{"name"}),
		Transitions: metricsCollector.NewCounter("circuit_breaker_state_transitions_total", "Circuit breaker state transitions", []string{"name", "from", "to"}),
	}

	// The warehouse client is built on first use so the service starts
	// without credentials; requests then fail with a configuration error.
	warehouse := telemetry.NewResolver(telemetry.WarehouseFactory(cfg.Warehouse, logger,
		telemetry.WithMetrics(telemetry.Metrics{Queries: dbQueries, Duration: dbDuration}),
		telemetry.WithBreakerStateHook(breakerMetrics.OnStateChange),
	))
	defer func() { _ = warehouse.Close() }()

	healthChecker.AddCheck("warehouse", monitoring.WarehouseHealthCheck(cfg.Warehouse.Backend, warehouse))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"LLM_API_KEY":       requiredKey(cfg.LLM),
		"WAREHOUSE_BACKEND": cfg.Warehouse.Backend,
		"TELEMETRY_TABLE":   cfg.Warehouse.Table,
	}))

	if cfg.LLM.Provider == llm.ProviderOllama {
		healthChecker.AddCheck("llm", monitoring.HTTPServiceHealthCheck("ollama", ollamaTagsURL(cfg.LLM.APIURL)))
	}

	model, err := llm.NewModel(cfg.LLM)
	if err != nil {
		logger.WithError(err).Warn("LLM backend not configured - chat will report a configuration error")
		model = nil
	}
	if cfg.LLM.RequiresAPIKey() && cfg.LLM.APIKey == "" {
		logger.Warn("No model API key set (GOOGLE_API_KEY / LLM_API_KEY)")
	}

	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		Model:       model,
		ModelConfig: cfg.LLM,
		Warehouse:   warehouse,
		Dialect:     dialect,
		MaxRows:     cfg.Warehouse.MaxRows,
		Logger:      logger,
		Metrics: chat.Metrics{
			Turns:     chatTurns,
			ToolCalls: chatToolCalls,
			Duration:  chatDuration,
		},
	})

	// Shared readings cache is optional.
	var readings dashboard.ReadingsStore
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := redis.NewClientFromURL(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable - readings cache disabled")
		} else {
			defer func() { _ = redisClient.Close() }()
			readings = redis.NewJSONStore[[]telemetry.SensorReading](redisClient, "daino:readings:", cfg.DashboardCacheTTL)
			logger.Info("Readings cache enabled")
		}
	}

	dashboardService := dashboard.NewService(dashboard.Config{
		Warehouse:    warehouse,
		Readings:     readings,
		SiteCacheTTL: cfg.SiteCacheTTL,
		OnCacheResult: func(result string) {
			cacheResults.WithLabelValues("sites", result).Inc()
		},
		Logger: logger,
	})

	// Setup router with unified monitoring (health/metrics)
	router := server.SetupServiceRouter(logger, "daino", healthChecker, metricsCollector)

	chat.RegisterRoutes(router, chat.NewChatHandler(orchestrator, cfg.ChatTimeout, logger))
	dashboard.RegisterRoutes(router, dashboard.NewHandler(dashboardService, logger))

	mountMCP, err := cfg.MCPMount()
	if err != nil {
		logger.WithError(err).Error("MCP endpoint not mounted")
	}
	if mountMCP {
		spoke := mcpspoke.NewServer(mcpspoke.Config{
			Warehouse: warehouse,
			Sites:     dashboardService,
			Dialect:   dialect,
			Logger:    logger,
			OnToolCall: func(tool, status string) {
				spokeCalls.WithLabelValues(tool, status).Inc()
			},
		})
		router.Any("/mcp", middleware.ServiceAuthMiddleware(cfg.MCPToken), gin.WrapH(mcpspoke.Handler(spoke)))
	}

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("daino", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}

// requiredKey reports the model key for the configuration check; keyless
// backends count as configured.
func requiredKey(cfg llm.Config) string {
	if !cfg.RequiresAPIKey() {
		return "not required"
	}
	return cfg.APIKey
}

// ollamaTagsURL maps the OpenAI-compatible base URL to Ollama's model list.
func ollamaTagsURL(apiURL string) string {
	base := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	return strings.TrimSuffix(base, "/v1") + "/api/tags"
}
