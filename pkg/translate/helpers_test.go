package translate

import (
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/graphask/internal/testutil"
	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/executor"
	"github.com/leapstack-labs/graphask/pkg/generator"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
)

const (
	topGunQuery = `MATCH (a:Actor)-[:ACTED_IN]->(m:Movie {name:"Top Gun"}) RETURN a.name AS actor`
	filmQuery   = `MATCH (a:Actor)-[:ACTED_IN]->(m:Film {name:"Top Gun"}) RETURN a.name AS actor`
)

// newOrchestrator wires the real pipeline to a scripted oracle and a fake
// store. Backoff is shortened so retries do not slow the tests down.
func newOrchestrator(t *testing.T, model *testutil.ScriptedModel, store *testutil.FakeStore, opts ...func(*Config)) *Orchestrator {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	cfg := Config{
		Cache:     graphschema.NewCache(graphschema.Config{Introspector: store, Logger: logger}),
		Generator: generator.New(generator.Config{Model: model, Logger: logger}),
		Executor:  executor.New(executor.Config{Runner: store, Timeout: time.Second, Logger: logger}),
		Backoff:   time.Millisecond,
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// recorder is an Observer that counts events.
type recorder struct {
	mu        sync.Mutex
	generated int
	executed  int
	verdicts  []core.Verdict
	finished  int
	lastErr   error
}

func (r *recorder) Generated(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generated++
}

func (r *recorder) Validated(v core.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts = append(r.verdicts, v)
}

func (r *recorder) Executed(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed++
}

func (r *recorder) Finished(_ *Outcome, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
	r.lastErr = err
}
