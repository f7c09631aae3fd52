package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/graphask/internal/testutil"
	"github.com/leapstack-labs/graphask/pkg/core"
)

// fakeRunner returns errs in order, then res. With block set it waits for
// ctx to end on every call.
type fakeRunner struct {
	errs  []error
	res   *core.Result
	block bool
	calls atomic.Int32
	query string
	opts  core.RunOptions
}

func (f *fakeRunner) Run(ctx context.Context, query string, opts core.RunOptions) (*core.Result, error) {
	n := int(f.calls.Add(1))
	f.query = query
	f.opts = opts
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	return f.res, nil
}

func actors() *core.Result {
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

var topGun = core.CandidateQuery{Text: `MATCH (m:Movie {name:"Top Gun"})<-[:ACTED_IN]-(a:Actor) RETURN a.name AS actor`, Attempt: 1}

func TestExecute(t *testing.T) {
	r := &fakeRunner{res: actors()}
	e := New(Config{Runner: r, Logger: testutil.NewTestLogger(t)})

	res, err := e.Execute(context.Background(), topGun)
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowCount)
	assert.Equal(t, []string{"actor"}, res.Columns)
	assert.Equal(t, "Tom Cruise", res.Rows[0]["actor"])
	assert.False(t, res.Truncated)
	assert.Equal(t, topGun.Text, r.query)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestExecute_MaxRows(t *testing.T) {
	tests := []struct {
		name          string
		maxRows       int
		wantRows      int
		wantTruncated bool
	}{
		{"capped", 2, 2, true},
		{"cap equals rows", 4, 4, false},
		{"no cap", 0, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{res: actors()}
			e := New(Config{Runner: r, MaxRows: tt.maxRows})

			res, err := e.Execute(context.Background(), topGun)
			require.NoError(t, err)
			assert.Equal(t, tt.maxRows, r.opts.MaxRows, "the cap reaches the runner")
			assert.Equal(t, tt.wantRows, res.RowCount)
			assert.Len(t, res.Rows, tt.wantRows)
			assert.Equal(t, tt.wantTruncated, res.Truncated)
		})
	}
}

func TestExecute_MaxRowsAppliedByStore(t *testing.T) {
	store := &testutil.FakeStore{Replies: []testutil.StoreReply{{Result: testutil.TopGunActors()}}}
	e := New(Config{Runner: store, MaxRows: 3})

	res, err := e.Execute(context.Background(), topGun)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecute_TransientResubmittedOnce(t *testing.T) {
	r := &fakeRunner{errs: []error{fmt.Errorf("%w: connection reset", core.ErrStoreUnavailable)}, res: actors()}
	e := New(Config{Runner: r})

	res, err := e.Execute(context.Background(), topGun)
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowCount)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestExecute_TransientExhausted(t *testing.T) {
	r := &fakeRunner{block: true}
	e := New(Config{Runner: r, Timeout: 10 * time.Millisecond})

	_, err := e.Execute(context.Background(), topGun)
	var ef *core.ExecutionFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, core.ExecTransient, ef.Kind)
	assert.True(t, core.IsTransient(err))
	assert.Equal(t, int32(2), r.calls.Load(), "exactly one re-submission")
}

func TestExecute_PermanentNotRetried(t *testing.T) {
	r := &fakeRunner{errs: []error{errors.New("Type mismatch: expected Integer but was String")}}
	e := New(Config{Runner: r})

	_, err := e.Execute(context.Background(), topGun)
	var ef *core.ExecutionFailure
	require.ErrorAs(t, err, &ef)
	assert.Equal(t, core.ExecPermanent, ef.Kind)
	assert.Contains(t, ef.Message, "Type mismatch")
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestExecute_AdapterClassificationKept(t *testing.T) {
	classified := &core.ExecutionFailure{Kind: core.ExecTransient, Code: "Neo.TransientError.Transaction.DeadlockDetected", Message: "deadlock"}
	r := &fakeRunner{errs: []error{classified, classified}}
	e := New(Config{Runner: r})

	_, err := e.Execute(context.Background(), topGun)
	var ef *core.ExecutionFailure
	require.ErrorAs(t, err, &ef)
	assert.Same(t, classified, ef)
	assert.Equal(t, int32(2), r.calls.Load())
}

func TestExecute_Canceled(t *testing.T) {
	r := &fakeRunner{block: true}
	e := New(Config{Runner: r})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Execute(ctx, topGun)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestExecute_NoRunner(t *testing.T) {
	_, err := New(Config{}).Execute(context.Background(), topGun)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.True(t, core.IsTransient(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ExecKind
	}{
		{"deadline", context.DeadlineExceeded, core.ExecTransient},
		{"wrapped deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), core.ExecTransient},
		{"store unavailable", core.ErrStoreUnavailable, core.ExecTransient},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, core.ExecTransient},
		{"syntax error from store", errors.New("Invalid input 'X'"), core.ExecPermanent},
		{"classified", &core.ExecutionFailure{Kind: core.ExecPermanent}, core.ExecPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Kind)
		})
	}
}
