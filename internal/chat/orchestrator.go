// Package chat runs one DAINO chat turn: it prepares the conversation, lets
// the model query telemetry once, and shapes the reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/llm"
	"github.com/dainotech/beespace-demo/pkg/logging"
)

// maxToolHops is the number of tool executions allowed per turn. A tool call
// in the reply after the last hop is ignored and its text is used.
const maxToolHops = 1

// notExecutedMessage answers the extra calls of a parallel tool request so
// every call id the model issued gets a response.
const notExecutedMessage = "not executed: one query per turn"

// WarehouseResolver hands out the shared telemetry client.
type WarehouseResolver interface {
	Client(ctx context.Context) (*telemetry.Client, error)
}

// Metrics are optional; nil fields are skipped.
type Metrics struct {
	Turns     *prometheus.CounterVec
	ToolCalls *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}

type OrchestratorConfig struct {
	Model       llm.Model
	ModelConfig llm.Config
	Warehouse   WarehouseResolver
	// Dialect shapes the prompt and tool declaration. It is known from
	// configuration before any warehouse connection exists.
	Dialect telemetry.Dialect
	MaxRows int
	Logger  logging.Logger
	Metrics Metrics
}

type Orchestrator struct {
	model       llm.Model
	modelConfig llm.Config
	warehouse   WarehouseResolver
	basePrompt  string
	tools       []llm.Tool
	logger      logging.Logger
	metrics     Metrics
}

// Reply is the assistant turn returned to the client.
type Reply struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type turnState int

const (
	stateAwaitingModelReply turnState = iota
	stateToolCallRequested
	stateToolExecuted
	stateDone
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingModelReply:
		return "awaiting_model_reply"
	case stateToolCallRequested:
		return "tool_call_requested"
	case stateToolExecuted:
		return "tool_executed"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Orchestrator{
		model:       cfg.Model,
		modelConfig: cfg.ModelConfig,
		warehouse:   cfg.Warehouse,
		basePrompt:  SystemPrompt(cfg.Dialect, cfg.MaxRows),
		tools:       []llm.Tool{QueryTelemetryTool(cfg.Dialect)},
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// turn carries the per-turn state between steps.
type turn struct {
	session llm.Session
	reply   *llm.Response
	call    llm.FunctionCall
	skipped []llm.FunctionCall
	result  llm.FunctionResponse
	hops    int
	rows    int
	tool    string
}

// RunTurn answers userMessage given the prior history. Errors are either
// *ConfigurationError or *SystemError.
func (o *Orchestrator) RunTurn(ctx context.Context, history []Turn, userMessage string, scope ScopingContext) (Reply, error) {
	start := time.Now()
	t := &turn{}

	reply, err := o.runTurn(ctx, t, history, userMessage, scope)
	err = asTurnError(err)

	outcome := "success"
	switch {
	case err == nil:
	case telemetry.IsConfigurationError(err):
		outcome = "configuration_error"
	default:
		outcome = "system_error"
	}
	o.observeTurn(outcome, time.Since(start))

	entry := o.logger.WithFields(logging.Fields{
		"site_id":  scope.SiteID,
		"tool":     t.tool,
		"hops":     t.hops,
		"rows":     t.rows,
		"outcome":  outcome,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("Chat turn failed")
		return Reply{}, err
	}
	entry.Info("Chat turn completed")
	return reply, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, t *turn, history []Turn, userMessage string, scope ScopingContext) (Reply, error) {
	if !o.modelConfig.KnownProvider() {
		return Reply{}, &ConfigurationError{Message: fmt.Sprintf("unknown LLM provider %q", o.modelConfig.Provider)}
	}
	if o.modelConfig.RequiresAPIKey() && o.modelConfig.APIKey == "" {
		return Reply{}, &ConfigurationError{Message: "Missing API Key"}
	}
	if o.model == nil {
		return Reply{}, &ConfigurationError{Message: "model backend is not configured"}
	}

	clean := SanitizeHistory(history)
	turns := make([]llm.HistoryTurn, 0, len(clean))
	for _, h := range clean {
		turns = append(turns, llm.HistoryTurn{Role: string(h.Role), Text: h.Content})
	}

	session, err := o.model.StartSession(ctx, llm.SessionConfig{
		SystemInstruction: BuildInstruction(o.basePrompt, scope),
		History:           turns,
		Tools:             o.tools,
	})
	if err != nil {
		return Reply{}, &SystemError{Message: "start model session: " + err.Error(), Err: err}
	}
	t.session = session

	state := stateAwaitingModelReply
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return Reply{}, &SystemError{Message: "chat turn aborted: " + err.Error(), Err: err}
		}
		switch state {
		case stateAwaitingModelReply:
			state, err = o.awaitReply(ctx, t, userMessage)
		case stateToolCallRequested:
			state, err = o.executeTool(ctx, t)
		case stateToolExecuted:
			state = stateAwaitingModelReply
		}
		if err != nil {
			return Reply{}, err
		}
	}

	text := t.reply.Text()
	if text == "" {
		return Reply{}, &SystemError{Message: "model returned an empty reply"}
	}
	return ToReply(text), nil
}

// awaitReply sends the next message (the user's text on the first pass, the
// tool result afterwards) and decides whether a tool must run.
func (o *Orchestrator) awaitReply(ctx context.Context, t *turn, userMessage string) (turnState, error) {
	parts := []llm.Part{llm.TextPart(userMessage)}
	if t.hops > 0 {
		parts = []llm.Part{llm.FunctionResponsePart(t.result)}
		for _, call := range t.skipped {
			parts = append(parts, llm.FunctionResponsePart(llm.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: map[string]any{"error": notExecutedMessage},
			}))
		}
	}

	reply, err := t.session.Send(ctx, parts...)
	if err != nil {
		return stateDone, &SystemError{Message: err.Error(), Err: err}
	}
	t.reply = reply

	calls := reply.FunctionCalls()
	if len(calls) == 0 {
		return stateDone, nil
	}
	if t.hops >= maxToolHops {
		o.logger.WithFields(logging.Fields{
			"tool":  calls[0].Name,
			"calls": len(calls),
		}).Warn("Ignoring tool call beyond the hop limit")
		return stateDone, nil
	}
	if len(calls) > 1 {
		o.logger.WithField("calls", len(calls)).Debug("Model requested several tool calls; running the first")
	}
	t.call = calls[0]
	t.skipped = calls[1:]
	return stateToolCallRequested, nil
}

// executeTool runs the requested query. Query failures become a tool result
// the model can react to; only configuration and cancellation end the turn.
func (o *Orchestrator) executeTool(ctx context.Context, t *turn) (turnState, error) {
	t.hops++
	t.tool = t.call.Name

	query, err := sqlQueryArg(t.call)
	if err != nil {
		o.observeTool(t.call.Name, "protocol_error")
		return stateDone, &SystemError{Message: err.Error(), Err: err}
	}

	if o.warehouse == nil {
		return stateDone, &ConfigurationError{Message: "warehouse client is not configured"}
	}
	client, err := o.warehouse.Client(ctx)
	if err != nil {
		o.observeTool(t.call.Name, "unavailable")
		if telemetry.IsConfigurationError(err) {
			return stateDone, err
		}
		return stateDone, &ConfigurationError{Message: "warehouse client unavailable: " + err.Error(), Err: err}
	}

	o.logger.WithField("sql", query).Info("Executing SQL")
	rows, err := client.ExecuteAnalytical(ctx, query)

	var qe *QueryError
	switch {
	case err == nil:
		t.rows = len(rows)
		o.observeTool(t.call.Name, "success")
		o.logger.WithField("rows", len(rows)).Info("Query results")
		t.result = llm.FunctionResponse{
			ID:       t.call.ID,
			Name:     t.call.Name,
			Response: map[string]any{"result": rows},
		}
	case errors.As(err, &qe):
		o.observeTool(t.call.Name, "query_error")
		o.logger.WithError(err).Warn("Query failed; returning error to model")
		t.result = llm.FunctionResponse{
			ID:       t.call.ID,
			Name:     t.call.Name,
			Response: map[string]any{"error": qe.Message},
		}
	default:
		o.observeTool(t.call.Name, "aborted")
		return stateDone, &SystemError{Message: err.Error(), Err: err}
	}
	return stateToolExecuted, nil
}

func (o *Orchestrator) observeTurn(outcome string, elapsed time.Duration) {
	if o.metrics.Turns != nil {
		o.metrics.Turns.WithLabelValues(outcome).Inc()
	}
	if o.metrics.Duration != nil {
		o.metrics.Duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
}

func (o *Orchestrator) observeTool(tool, status string) {
	if o.metrics.ToolCalls != nil {
		o.metrics.ToolCalls.WithLabelValues(tool, status).Inc()
	}
}
