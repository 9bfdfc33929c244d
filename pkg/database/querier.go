package database

import (
	"context"
	"errors"

	"cloud.google.com/go/bigquery"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/lib/pq"
	"google.golang.org/api/googleapi"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// QueryOptions bound a single query.
type QueryOptions struct {
	// MaxRows stops reading after this many rows. Zero means no cap.
	MaxRows int
	// MaxBytesBilled caps the bytes a BigQuery job may scan. Ignored by
	// the SQL backends.
	MaxBytesBilled int64
}

// Querier runs read queries against a warehouse backend. Params are bound
// by name: the query text references them as @name on every backend.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any, opts QueryOptions) ([]Row, error)
	Ping(ctx context.Context) error
	Close() error
}

// IsQueryRejected reports whether the warehouse answered and refused the
// query itself (syntax, unknown column, scan limit). Such errors say nothing
// about backend health.
func IsQueryRejected(err error) bool {
	if err == nil {
		return false
	}

	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) {
		switch bqErr.Reason {
		case "invalidQuery", "invalid", "notFound", "bytesBilledLimitExceeded", "accessDenied":
			return true
		}
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 || apiErr.Code == 403 || apiErr.Code == 404
	}

	var chErr *clickhouse.Exception
	if errors.As(err, &chErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "42":
			return true
		}
	}

	return false
}
