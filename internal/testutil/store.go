package testutil

import (
	"context"
	"sync"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// StoreReply is one scripted response to Run.
type StoreReply struct {
	Result *core.Result
	Err    error
	// Block waits for the call's context to end.
	Block bool
}

// FakeStore is an in-memory core.Adapter. Run answers with Replies in
// order, repeating the last one; Introspect returns Schema.
type FakeStore struct {
	Schema     *core.SchemaInfo
	SchemaErr  error
	Replies    []StoreReply
	ConnectErr error
	// ConnectGate holds Connect until it is closed or ctx ends.
	ConnectGate chan struct{}

	mu      sync.Mutex
	queries []string
	closed  bool
}

// Connect implements core.Adapter.
func (s *FakeStore) Connect(ctx context.Context, _ core.AdapterConfig) error {
	if s.ConnectGate != nil {
		select {
		case <-s.ConnectGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.ConnectErr
}

// Close implements core.Adapter.
func (s *FakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping implements core.Adapter.
func (s *FakeStore) Ping(context.Context) error {
	return s.SchemaErr
}

// Introspect implements core.Adapter.
func (s *FakeStore) Introspect(context.Context) (*core.SchemaInfo, error) {
	if s.SchemaErr != nil {
		return nil, s.SchemaErr
	}
	if s.Schema == nil {
		return MoviesSchema(), nil
	}
	return s.Schema, nil
}

// Run implements core.Adapter. Rows past opts.MaxRows are dropped and the
// result marked truncated, as a real adapter does.
func (s *FakeStore) Run(ctx context.Context, query string, opts core.RunOptions) (*core.Result, error) {
	s.mu.Lock()
	n := len(s.queries)
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	if len(s.Replies) == 0 {
		return &core.Result{Rows: []map[string]any{}}, nil
	}
	r := s.Replies[min(n, len(s.Replies)-1)]
	if r.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	res := cloneResult(r.Result)
	if opts.MaxRows > 0 && len(res.Rows) > opts.MaxRows {
		res.Rows = res.Rows[:opts.MaxRows]
		res.Truncated = true
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

// Queries returns the query texts passed to Run.
func (s *FakeStore) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// Closed reports whether Close was called.
func (s *FakeStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Executors truncate rows in place, so every call gets its own copy.
func cloneResult(r *core.Result) *core.Result {
	if r == nil {
		return &core.Result{Rows: []map[string]any{}}
	}
	out := *r
	out.Rows = append([]map[string]any(nil), r.Rows...)
	return &out
}

// TopGunActors is the result of listing the actors of Top Gun.
func TopGunActors() *core.Result {
	return &core.Result{
		Columns: []string{"actor"},
		Rows: []map[string]any{
			{"actor": "Tom Cruise"},
			{"actor": "Val Kilmer"},
			{"actor": "Anthony Edwards"},
			{"actor": "Meg Ryan"},
		},
	}
}
