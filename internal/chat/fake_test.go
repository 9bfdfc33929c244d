package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/dainotech/beespace-demo/internal/telemetry"
	"github.com/dainotech/beespace-demo/pkg/database"
	"github.com/dainotech/beespace-demo/pkg/llm"
)

// scriptedModel replays canned responses, one per Send.
type scriptedModel struct {
	mu        sync.Mutex
	replies   []*llm.Response
	sendErr   error
	startErr  error
	starts    int
	sends     [][]llm.Part
	configs   []llm.SessionConfig
	modelCall int
}

func (m *scriptedModel) StartSession(_ context.Context, cfg llm.SessionConfig) (llm.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.configs = append(m.configs, cfg)
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &scriptedSession{model: m}, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts + m.modelCall
}

type scriptedSession struct {
	model *scriptedModel
}

func (s *scriptedSession) Send(_ context.Context, parts ...llm.Part) (*llm.Response, error) {
	m := s.model
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelCall++
	m.sends = append(m.sends, parts)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if len(m.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next, nil
}

type recordingQuerier struct {
	mu      sync.Mutex
	rows    []database.Row
	err     error
	queries []string
}

func (q *recordingQuerier) Query(_ context.Context, query string, _ map[string]any, _ database.QueryOptions) ([]database.Row, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queries = append(q.queries, query)
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func (q *recordingQuerier) Ping(context.Context) error { return nil }
func (q *recordingQuerier) Close() error               { return nil }

var testDialect = telemetry.DialectFor("bigquery", "daino-platform.telemetry_history.readings")

func staticWarehouse(q database.Querier) *telemetry.Resolver {
	return telemetry.StaticResolver(telemetry.NewClient(q, testDialect))
}

func queryCall(sql string) llm.FunctionCall {
	return llm.FunctionCall{ID: "call-1", Name: ToolQueryTelemetry, Args: map[string]any{"sql_query": sql}}
}

func newTestOrchestrator(model llm.Model, warehouse WarehouseResolver) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Model:       model,
		ModelConfig: llm.Config{Provider: llm.ProviderGemini, APIKey: "test-key"},
		Warehouse:   warehouse,
		Dialect:     testDialect,
	})
}
