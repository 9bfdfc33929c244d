package telemetry

import (
	"context"
	"sync"

	"github.com/dainotech/beespace-demo/pkg/database"
)

type fakeQuerier struct {
	mu      sync.Mutex
	rows    []Row
	err     error
	queries []string
	params  []map[string]any
	opts    []database.QueryOptions
	pingErr error
	closed  bool
}

func (f *fakeQuerier) Query(_ context.Context, query string, params map[string]any, opts database.QueryOptions) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeQuerier) Ping(context.Context) error { return f.pingErr }

func (f *fakeQuerier) Close() error {
	f.closed = true
	return nil
}

func (f *fakeQuerier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}
