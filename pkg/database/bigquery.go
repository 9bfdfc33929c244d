package database

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dainotech/beespace-demo/pkg/logging"
)

// BigQueryConfig holds BigQuery configuration
type BigQueryConfig struct {
	ProjectID   string
	Credentials *ServiceAccount
	Location    string
}

// BigQueryQuerier runs GoogleSQL queries with named parameters.
type BigQueryQuerier struct {
	client *bigquery.Client
}

// ConnectBigQuery builds a BigQuery client from an explicit service account.
// No request is made; the first query verifies the credentials.
func ConnectBigQuery(ctx context.Context, cfg BigQueryConfig, logger logging.Logger) (*BigQueryQuerier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("bigquery project id is required")
	}
	if !cfg.Credentials.Valid() {
		return nil, ErrNoCredentials
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON(cfg.Credentials.CredentialsJSON()))
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	logger.WithFields(logging.Fields{
		"project_id":   cfg.ProjectID,
		"client_email": cfg.Credentials.ClientEmail,
	}).Info("BigQuery client ready")

	return &BigQueryQuerier{client: client}, nil
}

func (q *BigQueryQuerier) Query(ctx context.Context, query string, params map[string]any, opts QueryOptions) ([]Row, error) {
	bq := q.client.Query(query)
	bq.Parameters = bigQueryParams(params)
	if opts.MaxBytesBilled > 0 {
		bq.MaxBytesBilled = opts.MaxBytesBilled
	}

	it, err := bq.Read(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for {
		if opts.MaxRows > 0 && len(out) >= opts.MaxRows {
			break
		}
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(Row, len(values))
		for k, v := range values {
			row[k] = bigQueryValue(v)
		}
		out = append(out, row)
	}
	return out, nil
}

func (q *BigQueryQuerier) Ping(ctx context.Context) error {
	it, err := q.client.Query("SELECT 1").Read(ctx)
	if err != nil {
		return err
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func (q *BigQueryQuerier) Close() error {
	return q.client.Close()
}

func bigQueryParams(params map[string]any) []bigquery.QueryParameter {
	if len(params) == 0 {
		return nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]bigquery.QueryParameter, 0, len(names))
	for _, name := range names {
		out = append(out, bigquery.QueryParameter{Name: name, Value: params[name]})
	}
	return out
}

// bigQueryValue flattens BigQuery values into JSON-friendly ones.
func bigQueryValue(v bigquery.Value) any {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case civil.Date:
		return val.String()
	case civil.DateTime:
		return val.String()
	case civil.Time:
		return val.String()
	case []bigquery.Value:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = bigQueryValue(item)
		}
		return out
	case map[string]bigquery.Value:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = bigQueryValue(item)
		}
		return out
	case *big.Rat:
		// NUMERIC and BIGNUMERIC arrive as rationals; as-is they encode as "213/10".
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case []byte:
		return string(val)
	default:
		return v
	}
}
