package chat

import (
	"fmt"
	"strings"

	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/llm"
)

const (
	ToolQueryTelemetry = "query_telemetry"
	argSQLQuery        = "sql_query"
)

// QueryTelemetryTool declares the single tool offered to the model.
func QueryTelemetryTool(d telemetry.Dialect) llm.Tool {
	return llm.Tool{
		Name:        ToolQueryTelemetry,
		Description: "Execute a SQL query against the historical telemetry database to retrieve readings, calculate averages, or find trends.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				argSQLQuery: map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("The %s query to execute. Table name is `%s`.", d.Name, d.Table),
				},
			},
			"required": []string{argSQLQuery},
		},
	}
}

// sqlQueryArg extracts the statement from a query_telemetry call.
func sqlQueryArg(call llm.FunctionCall) (string, error) {
	if call.Name != ToolQueryTelemetry {
		return "", &ProtocolError{Message: fmt.Sprintf("model requested unknown tool %q", call.Name)}
	}
	raw, ok := call.Args[argSQLQuery]
	if !ok {
		return "", &ProtocolError{Message: "query_telemetry call is missing sql_query"}
	}
	query, ok := raw.(string)
	if !ok {
		return "", &ProtocolError{Message: fmt.Sprintf("query_telemetry sql_query must be a string, got %T", raw)}
	}
	if strings.TrimSpace(query) == "" {
		return "", &ProtocolError{Message: "query_telemetry sql_query is empty"}
	}
	return query, nil
}
