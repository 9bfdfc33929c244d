// Package telemetry runs read-only queries against the sensor telemetry
// warehouse for the chat tool path and the dashboard.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dainotech/beespace-demo/pkg/database"
	"github.com/dainotech/beespace-demo/pkg/logging"
	"github.com/dainotech/beespace-demo/pkg/resilience"
)

// Row is one result row keyed by column name.
type Row = database.Row

const circuitOpenMessage = "warehouse unavailable: circuit open"

// Query types reported in metrics.
const (
	QueryTypeAnalytical    = "analytical"
	QueryTypeParameterized = "parameterized"
	QueryTypeSites         = "sites"
	QueryTypeReadings      = "readings"
	QueryTypePing          = "ping"
)

// Limits bound what a single query may cost or return.
type Limits struct {
	MaxRows        int
	MaxBytesBilled int64
	MaxQueryBytes  int
}

// Metrics are optional; a nil field is skipped.
type Metrics struct {
	Queries  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// Client wraps a warehouse Querier with the read-only guard, row caps, a
// circuit breaker and query metrics.
type Client struct {
	querier       database.Querier
	dialect       Dialect
	limits        Limits
	breaker       *resilience.CircuitBreaker
	onBreakerFlip func(name string, from, to resilience.CircuitBreakerState)
	metrics       Metrics
	logger        logging.Logger
}

type Option func(*Client)

func WithLimits(l Limits) Option {
	return func(c *Client) { c.limits = l }
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBreakerStateHook observes state changes of the default breaker.
func WithBreakerStateHook(fn func(name string, from, to resilience.CircuitBreakerState)) Option {
	return func(c *Client) { c.onBreakerFlip = fn }
}

func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = b }
}

func NewClient(q database.Querier, d Dialect, opts ...Option) *Client {
	c := &Client{querier: q, dialect: d}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewDiscardLogger()
	}
	if c.breaker == nil {
		// Rejected SQL is the model's mistake, not a backend outage.
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:          "warehouse-" + d.Backend,
			Timeout:       30 * time.Second,
			IsFailure:     func(err error) bool { return !database.IsQueryRejected(err) },
			Logger:        c.logger,
			OnStateChange: c.onBreakerFlip,
		})
	}
	return c
}

func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Execute runs a parameterized query. Warehouse failures come back as
// *QueryError carrying the warehouse's message; context errors are returned
// as they are.
func (c *Client) Execute(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return c.run(ctx, QueryTypeParameterized, query, params, database.QueryOptions{MaxBytesBilled: c.limits.MaxBytesBilled})
}

// ExecuteAnalytical runs a free-form statement authored by the model. The
// statement must pass CheckReadOnly and the result is capped at MaxRows.
func (c *Client) ExecuteAnalytical(ctx context.Context, query string) ([]Row, error) {
	if err := CheckReadOnly(query, c.dialect.Backend, c.limits.MaxQueryBytes); err != nil {
		c.observe(QueryTypeAnalytical, "rejected", 0)
		return nil, err
	}
	return c.run(ctx, QueryTypeAnalytical, query, nil, database.QueryOptions{
		MaxRows:        c.limits.MaxRows,
		MaxBytesBilled: c.limits.MaxBytesBilled,
	})
}

func (c *Client) run(ctx context.Context, queryType, query string, params map[string]any, opts database.QueryOptions) ([]Row, error) {
	start := time.Now()
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return c.querier.Query(ctx, query, params, opts)
	})
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.observe(queryType, "canceled", elapsed)
			return nil, ctxErr
		}
		if errors.Is(err, resilience.ErrOpen) {
			c.observe(queryType, "circuit_open", elapsed)
			return nil, &QueryError{Message: circuitOpenMessage, Err: err}
		}
		c.observe(queryType, "error", elapsed)
		c.logger.WithError(err).WithFields(logging.Fields{
			"query_type": queryType,
			"duration":   elapsed.String(),
		}).Warn("Warehouse query failed")
		return nil, &QueryError{Message: err.Error(), Err: err}
	}

	c.observe(queryType, "success", elapsed)
	rows, _ := result.([]Row)
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

func (c *Client) observe(queryType, status string, elapsed time.Duration) {
	if c.metrics.Queries != nil {
		c.metrics.Queries.WithLabelValues(queryType, status).Inc()
	}
	if c.metrics.Duration != nil && elapsed > 0 {
		c.metrics.Duration.WithLabelValues(queryType).Observe(elapsed.Seconds())
	}
}

// Ping checks the warehouse without going through the breaker.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.querier.Ping(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.observe(QueryTypePing, status, time.Since(start))
	return err
}

func (c *Client) Close() error {
	return c.querier.Close()
}
