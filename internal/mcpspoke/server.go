// Package mcpspoke exposes the telemetry tools to MCP agent clients.
package mcpspoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dainotech/beespace-demo/internal/chat"
	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/logging"
	"github.com/dainotech/beespace-demo/pkg/version"
)

// WarehouseResolver hands out the shared telemetry client.
type WarehouseResolver interface {
	Client(ctx context.Context) (*telemetry.Client, error)
}

// SiteLister returns known site ids.
type SiteLister interface {
	Sites(ctx context.Context) ([]string, error)
}

type Config struct {
	Warehouse WarehouseResolver
	Sites     SiteLister
	Dialect   telemetry.Dialect
	Logger    logging.Logger
	// OnToolCall receives the tool name and "success" or "error".
	OnToolCall func(tool, status string)
}

// NewServer creates an MCP server with query_telemetry and list_sites.
func NewServer(cfg Config) *mcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "daino-spoke",
		Version: version.Version,
	}, nil)

	registerQueryTelemetry(srv, cfg)
	registerListSites(srv, cfg)
	return srv
}

// Handler serves srv over streamable HTTP without sessions.
func Handler(srv *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return srv },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

// --- query_telemetry ---

type queryTelemetryInput struct {
	SQLQuery string `json:"sql_query" jsonschema:"required" jsonschema_description:"Read-only SQL query (single SELECT or WITH statement)"`
}

type queryTelemetryResponse struct {
	Rows     []telemetry.Row `json:"rows"`
	RowCount int             `json:"row_count"`
}

func registerQueryTelemetry(srv *mcp.Server, cfg Config) {
	desc := chat.QueryTelemetryTool(cfg.Dialect).Description
	if cfg.Dialect.Table != "" {
		desc = fmt.Sprintf("%s Dialect: %s. Table: %s.", desc, cfg.Dialect.Name, cfg.Dialect.Table)
	}
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        chat.ToolQueryTelemetry,
			Description: desc,
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args queryTelemetryInput) (*mcp.CallToolResult, any, error) {
			return handleQueryTelemetry(ctx, args, cfg)
		},
	)
}

func handleQueryTelemetry(ctx context.Context, args queryTelemetryInput, cfg Config) (*mcp.CallToolResult, any, error) {
	if cfg.Warehouse == nil {
		return spokeError(cfg, chat.ToolQueryTelemetry, "telemetry warehouse unavailable")
	}
	if args.SQLQuery == "" {
		return spokeError(cfg, chat.ToolQueryTelemetry, "sql_query is required")
	}
	client, err := cfg.Warehouse.Client(ctx)
	if err != nil {
		cfg.Logger.WithError(err).Warn("MCP query_telemetry: warehouse unavailable")
		return spokeError(cfg, chat.ToolQueryTelemetry, err.Error())
	}
	rows, err := client.ExecuteAnalytical(ctx, args.SQLQuery)
	if err != nil {
		return spokeError(cfg, chat.ToolQueryTelemetry, err.Error())
	}
	return spokeSuccess(cfg, chat.ToolQueryTelemetry, queryTelemetryResponse{Rows: rows, RowCount: len(rows)})
}

// --- list_sites ---

type listSitesInput struct{}

type listSitesResponse struct {
	Sites []string `json:"sites"`
}

func registerListSites(srv *mcp.Server, cfg Config) {
	mcp.AddTool(srv,
		&mcp.Tool{
			Name:        "list_sites",
			Description: "List the building site ids that have telemetry.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, _ listSitesInput) (*mcp.CallToolResult, any, error) {
			if cfg.Sites == nil {
				return spokeError(cfg, "list_sites", "site list unavailable")
			}
			sites, err := cfg.Sites.Sites(ctx)
			if err != nil {
				return spokeError(cfg, "list_sites", err.Error())
			}
			return spokeSuccess(cfg, "list_sites", listSitesResponse{Sites: sites})
		},
	)
}

func spokeError(cfg Config, tool, message string) (*mcp.CallToolResult, any, error) {
	if cfg.OnToolCall != nil {
		cfg.OnToolCall(tool, "error")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}, nil, nil
}

func spokeSuccess(cfg Config, tool string, result any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return spokeError(cfg, tool, fmt.Sprintf("failed to format result: %v", err))
	}
	if cfg.OnToolCall != nil {
		cfg.OnToolCall(tool, "success")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, result, nil
}
