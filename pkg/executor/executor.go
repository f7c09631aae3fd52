// Package executor runs validated queries against the graph store.
package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// DefaultTimeout bounds a single store call.
const DefaultTimeout = 30 * time.Second

// Runner executes query text. core.Adapter implementations satisfy it.
type Runner interface {
	Run(ctx context.Context, query string, opts core.RunOptions) (*core.Result, error)
}

// Config configures an Executor.
type Config struct {
	Runner  Runner
	Timeout time.Duration
	// MaxRows caps the rows returned. Zero means no cap.
	MaxRows int
	Logger  *slog.Logger
}

// Executor submits queries to the store. A transient failure is resubmitted
// exactly once with the same text.
type Executor struct {
	runner  Runner
	timeout time.Duration
	maxRows int
	logger  *slog.Logger
}

// New creates an Executor.
func New(cfg Config) *Executor {
	e := &Executor{
		runner:  cfg.Runner,
		timeout: cfg.Timeout,
		maxRows: cfg.MaxRows,
		logger:  cfg.Logger,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// Execute runs an already validated candidate. Failures are
// *core.ExecutionFailure unless ctx itself was canceled, in which case the
// context error is returned.
func (e *Executor) Execute(ctx context.Context, cand core.CandidateQuery) (*core.Result, error) {
	if e.runner == nil {
		return nil, &core.ExecutionFailure{Kind: core.ExecTransient, Err: core.ErrStoreUnavailable}
	}

	var failure *core.ExecutionFailure
	for try := 1; try <= 2; try++ {
		res, err := e.run(ctx, cand.Text)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		failure = Classify(err)
		e.logger.Debug("query execution failed",
			"attempt", cand.Attempt,
			"try", try,
			"kind", failure.Kind,
			"code", failure.Code,
			"error", failure.Error())
		if failure.Kind != core.ExecTransient {
			break
		}
	}
	return nil, failure
}

func (e *Executor) run(ctx context.Context, query string) (*core.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.runner.Run(ctx, query, core.RunOptions{MaxRows: e.maxRows})
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &core.Result{}
	}
	res.Elapsed = time.Since(start)

	// Runners are asked to stop at the cap; this catches those that do not.
	if e.maxRows > 0 && len(res.Rows) > e.maxRows {
		res.Rows = res.Rows[:e.maxRows]
		res.Truncated = true
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

// Classify maps a store error to an execution failure. Errors the store
// adapter already classified are returned unchanged. Timeouts and
// connectivity problems are transient; anything else means the store
// rejected the query.
func Classify(err error) *core.ExecutionFailure {
	var ef *core.ExecutionFailure
	if errors.As(err, &ef) {
		return ef
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &core.ExecutionFailure{Kind: core.ExecTransient, Message: "store call timed out", Err: err}
	case errors.Is(err, core.ErrStoreUnavailable),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &netErr):
		return &core.ExecutionFailure{Kind: core.ExecTransient, Message: err.Error(), Err: err}
	}
	return &core.ExecutionFailure{Kind: core.ExecPermanent, Message: err.Error(), Err: err}
}
