package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dainotech/beespace-demo/pkg/database"
	"github.com/dainotech/beespace-demo/pkg/resilience"
)

func tripAfterOne() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "test-warehouse",
		MinRequests:  1,
		FailureRatio: 1,
		Timeout:      time.Minute,
		IsFailure:    func(err error) bool { return !database.IsQueryRejected(err) },
	})
}

func TestClient_ExecuteAnalytical_PassesRows(t *testing.T) {
	q := &fakeQuerier{rows: []Row{{"avg_temp": 21.3}}}
	c := NewClient(q, DialectFor("bigquery", "p.d.t"), WithLimits(Limits{MaxRows: 50, MaxBytesBilled: 1 << 30}))

	rows, err := c.ExecuteAnalytical(context.Background(), "SELECT AVG(temperature) AS avg_temp FROM t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0]["avg_temp"] != 21.3 {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if q.opts[0].MaxRows != 50 || q.opts[0].MaxBytesBilled != 1<<30 {
		t.Fatalf("limits not forwarded: %+v", q.opts[0])
	}
}

func TestClient_ExecuteAnalytical_GuardRejectsWithoutQuerying(t *testing.T) {
	q := &fakeQuerier{}
	c := NewClient(q, DialectFor("bigquery", "t"))

	_, err := c.ExecuteAnalytical(context.Background(), "DELETE FROM t")
	if !IsQueryError(err) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	if q.calls() != 0 {
		t.Fatalf("guarded query must not reach the warehouse")
	}
}

func TestClient_WarehouseErrorMessagePassesThrough(t *testing.T) {
	q := &fakeQuerier{err: errors.New("Unrecognized name: temp at [1:12]")}
	c := NewClient(q, DialectFor("bigquery", "t"))

	_, err := c.ExecuteAnalytical(context.Background(), "SELECT temp FROM t")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryError, got %T", err)
	}
	if qe.Message != "Unrecognized name: temp at [1:12]" {
		t.Fatalf("message not passed through verbatim: %q", qe.Message)
	}
}

func TestClient_CircuitOpensOnBackendFailure(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection refused")}
	c := NewClient(q, DialectFor("postgres", "readings"), WithBreaker(tripAfterOne()))

	if _, err := c.ExecuteAnalytical(context.Background(), "SELECT 1"); !IsQueryError(err) {
		t.Fatalf("expected QueryError, got %v", err)
	}
	_, err := c.ExecuteAnalytical(context.Background(), "SELECT 1")
	if err == nil || err.Error() != circuitOpenMessage {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if q.calls() != 1 {
		t.Fatalf("expected open circuit to fail fast, warehouse saw %d queries", q.calls())
	}
}

func TestClient_RejectedQueriesDoNotTripCircuit(t *testing.T) {
	q := &fakeQuerier{err: &pq.Error{Code: "42703", Message: "column \"temp\" does not exist"}}
	c := NewClient(q, DialectFor("postgres", "readings"), WithBreaker(tripAfterOne()))

	for i := 0; i < 3; i++ {
		_, err := c.ExecuteAnalytical(context.Background(), "SELECT temp FROM readings")
		if !IsQueryError(err) || !strings.Contains(err.Error(), "does not exist") {
			t.Fatalf("attempt %d: expected warehouse message, got %v", i, err)
		}
	}
	if q.calls() != 3 {
		t.Fatalf("expected every rejected query to reach the warehouse, got %d", q.calls())
	}
}

func TestClient_ContextErrorNotWrapped(t *testing.T) {
	q := &fakeQuerier{err: context.Canceled}
	c := NewClient(q, DialectFor("bigquery", "t"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Execute(ctx, "SELECT 1", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsQueryError(err) {
		t.Fatalf("cancellation must not look like a query failure")
	}
}

func TestClient_Metrics(t *testing.T) {
	queries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "q"}, []string{"query_type", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "d"}, []string{"query_type"})
	q := &fakeQuerier{rows: []Row{}}
	c := NewClient(q, DialectFor("bigquery", "t"), WithMetrics(Metrics{Queries: queries, Duration: duration}))

	_, _ = c.ExecuteAnalytical(context.Background(), "SELECT 1")
	_, _ = c.ExecuteAnalytical(context.Background(), "DROP TABLE t")

	if got := testutil.ToFloat64(queries.WithLabelValues(QueryTypeAnalytical, "success")); got != 1 {
		t.Fatalf("expected one successful query, got %v", got)
	}
	if got := testutil.ToFloat64(queries.WithLabelValues(QueryTypeAnalytical, "rejected")); got != 1 {
		t.Fatalf("expected one rejected query, got %v", got)
	}
}

func TestClient_EmptyResultIsNotNil(t *testing.T) {
	c := NewClient(&fakeQuerier{}, DialectFor("bigquery", "t"))
	rows, err := c.Execute(context.Background(), "SELECT 1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}

func TestClient_DefaultBreakerReportsStateChanges(t *testing.T) {
	var mu sync.Mutex
	var flips []string
	hook := func(name string, from, to resilience.CircuitBreakerState) {
		mu.Lock()
		defer mu.Unlock()
		flips = append(flips, name+":"+from.String()+"->"+to.String())
	}
	q := &fakeQuerier{err: errors.New("connection refused")}
	c := NewClient(q, DialectFor("clickhouse", "readings"), WithBreakerStateHook(hook))

	for i := 0; i < 10; i++ {
		_, _ = c.ExecuteAnalytical(context.Background(), "SELECT 1")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flips) == 0 || flips[0] != "warehouse-clickhouse:closed->open" {
		t.Fatalf("expected closed->open transition, got %v", flips)
	}
}
