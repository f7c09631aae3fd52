// Package engine wires a graph store, the schema cache, the oracle and the
// translation pipeline together from configuration.
// The store connection is opened lazily, so commands that only need a
// schema file never touch the network.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/graphask/internal/config"
	"github.com/leapstack-labs/graphask/internal/metrics"
	"github.com/leapstack-labs/graphask/internal/state"
	"github.com/leapstack-labs/graphask/pkg/adapter"
	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/executor"
	"github.com/leapstack-labs/graphask/pkg/generator"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
	"github.com/leapstack-labs/graphask/pkg/prompt"
	"github.com/leapstack-labs/graphask/pkg/translate"
	"github.com/leapstack-labs/graphask/pkg/validator"
)

// Engine owns the collaborators of one graphask process.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	// Graph store adapter (lazy initialized). storeMu guards the fields
	// only; the connect itself runs in connectGroup without the lock.
	store          core.Adapter
	storeConnected bool
	closed         bool
	storeMu        sync.Mutex
	connectGroup   singleflight.Group

	model   model.BaseChatModel
	metrics *metrics.Collector

	cache  *graphschema.Cache
	policy validator.Policy
	orch   *translate.Orchestrator

	// history is nil when run history is disabled
	history     state.StateStore
	historyKeep int
}

// Config holds engine configuration.
type Config struct {
	// App is the loaded configuration
	App *config.Config
	// Store replaces the adapter named by App.Store. It is used as is and
	// is expected to be connected already.
	Store core.Adapter
	// Model replaces the chat model built from App.Oracle
	Model model.BaseChatModel
	// History replaces the store opened from App.History.Path (optional).
	// The engine takes ownership and closes it.
	History state.StateStore
	// Metrics receives pipeline and schema events (optional)
	Metrics *metrics.Collector
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. No connection to the store is made until the
// first translation, ping or introspection.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.App == nil {
		return nil, errors.New("engine: configuration is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	app := cfg.App

	e := &Engine{
		cfg:     app,
		logger:  logger,
		model:   cfg.Model,
		metrics: cfg.Metrics,
		policy: validator.Policy{
			AllowDangerous: app.Translate.AllowDangerous,
			ReadOnly:       app.Translate.ReadOnly,
			Procedures:     app.Translate.Procedures,
			WriteLimit:     app.Translate.WriteLimit,
		},
	}
	if cfg.Store != nil {
		e.store = cfg.Store
		e.storeConnected = true
	}

	if e.model == nil {
		m, err := newChatModel(ctx, app.Oracle)
		if err != nil {
			return nil, err
		}
		e.model = m
	}

	var introspector graphschema.Introspector = e
	if app.Schema.File != "" {
		introspector = &graphschema.FileIntrospector{Path: app.Schema.File}
	}
	cacheCfg := graphschema.Config{
		Introspector: introspector,
		MaxAge:       app.Schema.MaxAge,
		Timeout:      app.Schema.Timeout,
		Exclude:      app.Schema.Exclude,
		Logger:       logger,
	}
	if e.metrics != nil {
		cacheCfg.OnRefresh = e.metrics.SchemaRefreshed
	}
	e.cache = graphschema.NewCache(cacheCfg)

	examples := make([]prompt.Example, 0, len(app.Translate.Examples))
	for _, ex := range app.Translate.Examples {
		examples = append(examples, prompt.Example{Question: ex.Question, Cypher: ex.Cypher})
	}

	tcfg := translate.Config{
		Cache:    e.cache,
		Composer: &prompt.Composer{Examples: examples},
		Generator: generator.New(generator.Config{
			Model:   e.model,
			Timeout: app.Oracle.Timeout,
			Breaker: generator.BreakerConfig{
				MaxRequests:         1,
				Interval:            time.Minute,
				Timeout:             app.Oracle.BreakerCooldown,
				ConsecutiveFailures: app.Oracle.BreakerFailures,
			},
			Logger: logger,
		}),
		Executor: executor.New(executor.Config{
			Runner:  e,
			Timeout: app.Translate.ExecTimeout,
			MaxRows: app.Translate.MaxRows,
			Logger:  logger,
		}),
		Policy:            e.policy,
		MaxAttempts:       app.Translate.MaxAttempts,
		OracleRetries:     app.Translate.OracleRetries,
		StoreRetries:      app.Translate.StoreRetries,
		Backoff:           app.Translate.Backoff,
		MaxBackoff:        app.Translate.MaxBackoff,
		MaxConcurrent:     app.Translate.MaxConcurrent,
		Answer:            app.Translate.Answer,
		AnswerContextRows: app.Translate.AnswerContextRows,
		Logger:            logger,
	}
	if e.metrics != nil {
		tcfg.Observer = e.metrics
	}
	e.orch = translate.New(tcfg)

	e.history = cfg.History
	e.historyKeep = app.History.Keep
	if e.history == nil && app.History.Path != "" {
		hs := state.NewSQLiteStore(logger)
		if err := hs.Open(app.History.Path); err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		e.history = hs
	}

	logger.Debug("engine initialized",
		"store", app.Store.Type,
		"model", app.Oracle.Model,
		"schema_file", app.Schema.File,
		"history", app.History.Path)
	return e, nil
}

func newChatModel(ctx context.Context, cfg config.OracleConfig) (model.BaseChatModel, error) {
	mcfg := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		mcfg.Temperature = &t
	}
	if cfg.MaxTokens > 0 {
		n := cfg.MaxTokens
		mcfg.MaxTokens = &n
	}
	m, err := openai.NewChatModel(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return m, nil
}

// connectTimeout bounds a shared connection attempt, which outlives the
// context of the caller that started it.
const connectTimeout = 30 * time.Second

var errEngineClosed = fmt.Errorf("%w: engine is closed", core.ErrStoreUnavailable)

// ensureStoreConnected lazily opens the store. Concurrent callers share one
// connection attempt, and each stops waiting when its own ctx is done. A
// failed attempt is retried on the next call.
func (e *Engine) ensureStoreConnected(ctx context.Context) (core.Adapter, error) {
	e.storeMu.Lock()
	store, connected, closed := e.store, e.storeConnected, e.closed
	e.storeMu.Unlock()
	if connected {
		return store, nil
	}
	if closed {
		return nil, errEngineClosed
	}

	ch := e.connectGroup.DoChan("store", func() (any, error) {
		return e.connect(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(core.Adapter), nil
	}
}

func (e *Engine) connect(ctx context.Context) (core.Adapter, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	acfg := e.cfg.Store.AdapterConfig()
	e.logger.Debug("connecting to graph store", "adapter_type", acfg.Type, "uri", acfg.URI)

	store, err := adapter.Open(ctx, acfg, e.logger)
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	e.storeMu.Lock()
	defer e.storeMu.Unlock()
	if e.closed {
		_ = store.Close()
		return nil, errEngineClosed
	}
	e.store = store
	e.storeConnected = true
	return store, nil
}

// Introspect implements graphschema.Introspector against the live store.
func (e *Engine) Introspect(ctx context.Context) (*core.SchemaInfo, error) {
	store, err := e.ensureStoreConnected(ctx)
	if err != nil {
		return nil, err
	}
	return store.Introspect(ctx)
}

// Run implements executor.Runner. A store that cannot be reached is a
// transient execution failure.
func (e *Engine) Run(ctx context.Context, query string, opts core.RunOptions) (*core.Result, error) {
	store, err := e.ensureStoreConnected(ctx)
	if err != nil {
		return nil, &core.ExecutionFailure{Kind: core.ExecTransient, Message: err.Error(), Err: err}
	}
	return store.Run(ctx, query, opts)
}

// Ping verifies the store is reachable, connecting first if needed.
func (e *Engine) Ping(ctx context.Context) error {
	store, err := e.ensureStoreConnected(ctx)
	if err != nil {
		return err
	}
	return store.Ping(ctx)
}

// Translate runs one question through the pipeline. When history is
// enabled the run is recorded whether it succeeded or not.
func (e *Engine) Translate(ctx context.Context, question string) (*translate.Outcome, error) {
	started := time.Now()
	out, err := e.orch.Translate(ctx, question)
	if e.history != nil {
		e.record(state.NewRun(uuid.NewString(), question, started, out, err))
	}
	return out, err
}

// record stores a run and trims the history. Failures are logged only; a
// broken history file never fails a translation.
func (e *Engine) record(run *state.Run) {
	// The caller's context may already be canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.history.RecordRun(ctx, run); err != nil {
		e.logger.Warn("failed to record run", "id", run.ID, "error", err)
		return
	}
	if e.historyKeep > 0 {
		if n, err := e.history.PruneRuns(ctx, e.historyKeep); err != nil {
			e.logger.Warn("failed to prune history", "error", err)
		} else if n > 0 {
			e.logger.Debug("pruned history", "deleted", n)
		}
	}
}

// Validate checks a query against the current schema and the configured
// policy without running it.
func (e *Engine) Validate(ctx context.Context, query string) (core.Verdict, error) {
	snap, err := e.cache.Load(ctx)
	if err != nil {
		return core.Verdict{}, err
	}
	return validator.Validate(core.CandidateQuery{Text: query, Attempt: 1}, snap, e.policy), nil
}

// WatchSchema reloads the schema file whenever it changes and blocks until
// ctx is done. It returns immediately when no watched file is configured.
func (e *Engine) WatchSchema(ctx context.Context) error {
	if e.cfg.Schema.File == "" || !e.cfg.Schema.Watch {
		return nil
	}
	return graphschema.Watch(ctx, e.cfg.Schema.File, e.cache, e.logger)
}

// Close releases the store connection and the history database.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing history: %w", err))
		}
		e.history = nil
	}

	e.storeMu.Lock()
	defer e.storeMu.Unlock()
	e.closed = true
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing store: %w", err))
		}
		e.store = nil
		e.storeConnected = false
	}
	return errors.Join(errs...)
}

// --- Getters (public accessors) ---

// Cache returns the schema cache.
func (e *Engine) Cache() *graphschema.Cache {
	return e.cache
}

// Orchestrator returns the translation pipeline.
func (e *Engine) Orchestrator() *translate.Orchestrator {
	return e.orch
}

// History returns the run history, or nil when it is disabled.
func (e *Engine) History() state.StateStore {
	return e.history
}

// Policy returns the validation policy.
func (e *Engine) Policy() validator.Policy {
	return e.policy
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config {
	return e.cfg
}
