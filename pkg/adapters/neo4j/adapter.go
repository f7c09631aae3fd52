package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	n4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/leapstack-labs/graphask/pkg/adapter"
	"github.com/leapstack-labs/graphask/pkg/core"
)

// Adapter implements core.Adapter over the Bolt driver.
type Adapter struct {
	adapter.Base
	flavor string
	params *Params
	driver n4j.DriverWithContext
}

// New creates an unconnected adapter for the given flavor.
func New(flavor string, logger *slog.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(logger), flavor: flavor}
}

// Connect opens the driver and verifies connectivity.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	if cfg.URI == "" {
		return fmt.Errorf("store uri not specified")
	}
	params, err := parseParams(a.flavor, cfg.Params)
	if err != nil {
		return err
	}

	auth := n4j.NoAuth()
	if cfg.Username != "" {
		auth = n4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	drv, err := n4j.NewDriverWithContext(cfg.URI, auth, func(c *config.Config) {
		if params.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = params.MaxPoolSize
		}
		if params.FetchSize > 0 {
			c.FetchSize = params.FetchSize
		}
		if params.MaxConnectionLifetime > 0 {
			c.MaxConnectionLifetime = params.MaxConnectionLifetime
		}
		if params.ConnectTimeout > 0 {
			c.SocketConnectTimeout = params.ConnectTimeout
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create %s driver: %w", a.flavor, err)
	}

	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(ctx)
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	a.driver = drv
	a.params = params
	a.Cfg = cfg
	a.Logger.Debug("connected to graph store", "flavor", a.flavor, "uri", cfg.URI, "introspection", params.Introspection)
	return nil
}

// Close closes the driver.
func (a *Adapter) Close() error {
	if a.driver == nil {
		return nil
	}
	a.Logger.Debug("closing graph store driver")
	err := a.driver.Close(context.Background())
	a.driver = nil
	return err
}

// Ping verifies the store is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.driver == nil {
		return errNotConnected
	}
	if err := a.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

var errNotConnected = fmt.Errorf("%w: connection not established", core.ErrStoreUnavailable)

// Run executes query in an auto-commit transaction and collects its
// records, up to opts.MaxRows when set. Errors are returned as
// *core.ExecutionFailure.
func (a *Adapter) Run(ctx context.Context, query string, opts core.RunOptions) (*core.Result, error) {
	if a.driver == nil {
		return nil, &core.ExecutionFailure{Kind: core.ExecTransient, Err: errNotConnected}
	}
	res, err := a.collect(ctx, query, opts)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func (a *Adapter) session(ctx context.Context) n4j.SessionWithContext {
	cfg := n4j.SessionConfig{AccessMode: n4j.AccessModeWrite}
	if a.params != nil && a.params.AccessMode == "read" {
		cfg.AccessMode = n4j.AccessModeRead
	}
	// Memgraph has a single database and rejects a database name.
	if a.flavor != FlavorMemgraph {
		cfg.DatabaseName = a.Cfg.Database
	}
	return a.driver.NewSession(ctx, cfg)
}

func (a *Adapter) collect(ctx context.Context, query string, opts core.RunOptions) (*core.Result, error) {
	params := opts.Params
	if params == nil {
		params = map[string]any{}
	}
	sess := a.session(ctx)
	defer func() { _ = sess.Close(ctx) }()

	result, err := sess.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	keys, err := result.Keys()
	if err != nil {
		return nil, err
	}

	out, err := readRows(ctx, result, keys, opts.MaxRows)
	if err != nil {
		return nil, err
	}
	if out.Truncated {
		// Discard what the server still holds so the statement completes.
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// recordStream is the part of the driver's result cursor readRows uses.
type recordStream interface {
	Next(ctx context.Context) bool
	Peek(ctx context.Context) bool
	Record() *n4j.Record
	Err() error
}

// readRows converts records to rows. With maxRows set it stops advancing
// the stream at the cap and peeks once to tell whether rows were left.
func readRows(ctx context.Context, rs recordStream, keys []string, maxRows int) (*core.Result, error) {
	out := &core.Result{Columns: keys, Rows: []map[string]any{}}
	for maxRows <= 0 || len(out.Rows) < maxRows {
		if !rs.Next(ctx) {
			break
		}
		rec := rs.Record()
		row := make(map[string]any, len(keys))
		for i, k := range rec.Keys {
			row[k] = normalize(rec.Values[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if maxRows > 0 && len(out.Rows) == maxRows && rs.Peek(ctx) {
		out.Truncated = true
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	out.RowCount = len(out.Rows)
	return out, nil
}

// classify maps driver errors onto execution failure kinds. Server errors
// in the Neo.TransientError class and connectivity problems are transient;
// every other server error means the query itself was rejected.
func classify(err error) *core.ExecutionFailure {
	var dbErr *n4j.Neo4jError
	if errors.As(err, &dbErr) {
		kind := core.ExecPermanent
		if strings.HasPrefix(dbErr.Code, "Neo.TransientError.") {
			kind = core.ExecTransient
		}
		return &core.ExecutionFailure{Kind: kind, Code: dbErr.Code, Message: dbErr.Msg, Err: err}
	}

	switch {
	case n4j.IsConnectivityError(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, core.ErrStoreUnavailable):
		return &core.ExecutionFailure{Kind: core.ExecTransient, Message: err.Error(), Err: err}
	}
	return &core.ExecutionFailure{Kind: core.ExecPermanent, Message: err.Error(), Err: err}
}

// normalize converts driver values into plain maps, slices and scalars so
// results encode cleanly as JSON and tables. Nodes and relationships become
// their property maps, as a client reading rows would expect.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, int64, float64, string:
		return t
	case n4j.Node:
		return normalizeMap(t.Props)
	case n4j.Relationship:
		return normalizeMap(t.Props)
	case n4j.Path:
		out := make([]any, 0, len(t.Nodes)+len(t.Relationships))
		for i, node := range t.Nodes {
			out = append(out, normalizeMap(node.Props))
			if i < len(t.Relationships) {
				out = append(out, t.Relationships[i].Type)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		return normalizeMap(t)
	case []byte:
		return t
	case fmt.Stringer:
		// Temporal and spatial values.
		return t.String()
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}
