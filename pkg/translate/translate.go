// Package translate runs the question to result pipeline: compose a prompt,
// generate a candidate, validate it, execute it, and feed failures back into
// the next prompt until the attempt budget is spent.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/executor"
	"github.com/leapstack-labs/graphask/pkg/generator"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
	"github.com/leapstack-labs/graphask/pkg/prompt"
	"github.com/leapstack-labs/graphask/pkg/validator"
)

// Defaults applied by New.
const (
	DefaultMaxAttempts       = 3
	DefaultOracleRetries     = 3
	DefaultStoreRetries      = 1
	DefaultBackoff           = 200 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultAnswerContextRows = 10
)

// Config configures an Orchestrator.
type Config struct {
	Cache     *graphschema.Cache
	Composer  *prompt.Composer
	Generator *generator.Generator
	Executor  *executor.Executor
	Policy    validator.Policy

	// MaxAttempts bounds correction retries. Each attempt is one generated
	// candidate.
	MaxAttempts int
	// OracleRetries bounds in-place retries of a failed oracle call.
	// Negative disables them.
	OracleRetries int
	// StoreRetries bounds re-executions after a transient store failure,
	// on top of the executor's own re-submission. Negative disables them.
	StoreRetries int
	// Backoff is the first retry delay; it doubles up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration

	// MaxConcurrent bounds translations in flight. Zero means unbounded.
	MaxConcurrent int64

	// Answer asks the oracle to phrase an answer from the result rows.
	Answer            bool
	AnswerContextRows int

	Observer Observer
	Logger   *slog.Logger
}

// Outcome is a successful translation.
type Outcome struct {
	TraceID  string       `json:"trace_id"`
	Query    string       `json:"query"`
	Result   *core.Result `json:"result"`
	Attempts int          `json:"attempts"`
	// Rejected lists the candidates that failed before the final one.
	Rejected []core.PriorAttempt `json:"-"`
	Answer   string              `json:"answer,omitempty"`
	Elapsed  time.Duration       `json:"-"`
}

// Orchestrator runs translations. It is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	sem      *semaphore.Weighted
	observer Observer
	logger   *slog.Logger
}

// New creates an Orchestrator, filling in defaults.
func New(cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.OracleRetries == 0 {
		cfg.OracleRetries = DefaultOracleRetries
	}
	if cfg.StoreRetries == 0 {
		cfg.StoreRetries = DefaultStoreRetries
	}
	cfg.OracleRetries = max(cfg.OracleRetries, 0)
	cfg.StoreRetries = max(cfg.StoreRetries, 0)
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.Backoff)
	}
	if cfg.AnswerContextRows <= 0 {
		cfg.AnswerContextRows = DefaultAnswerContextRows
	}
	if cfg.Composer == nil {
		cfg.Composer = &prompt.Composer{}
	}

	o := &Orchestrator{cfg: cfg, observer: cfg.Observer, logger: cfg.Logger}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return o
}

// Translate turns question into a query, runs it and returns the result.
// Errors are *core.Failure.
func (o *Orchestrator) Translate(ctx context.Context, question string) (*Outcome, error) {
	start := time.Now()
	traceID := uuid.NewString()
	logger := o.logger.With("trace_id", traceID)

	out, err := o.translate(ctx, logger, traceID, strings.TrimSpace(question))
	elapsed := time.Since(start)
	if out != nil {
		out.Elapsed = elapsed
	}
	o.observer.Finished(out, err, elapsed)

	if err != nil {
		logger.Info("translation failed", "error", err, "duration", elapsed)
		return nil, err
	}
	logger.Info("translation succeeded",
		"attempts", out.Attempts,
		"rows", out.Result.RowCount,
		"duration", elapsed)
	return out, nil
}

func (o *Orchestrator) translate(ctx context.Context, logger *slog.Logger, traceID, question string) (*Outcome, error) {
	if question == "" {
		return nil, &core.Failure{
			Kind:  core.KindInput,
			Stage: core.StageInput,
			Err:   &core.InputError{Message: "no question provided"},
		}
	}

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return nil, canceled(core.StageInput, 0, err)
		}
		defer o.sem.Release(1)
	}

	snap, err := o.cfg.Cache.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(core.StageSchema, 0, ctx.Err())
		}
		return nil, &core.Failure{Kind: core.KindStoreUnavailable, Stage: core.StageSchema, Err: err}
	}

	out := &Outcome{TraceID: traceID}
	var (
		prior *core.PriorAttempt
		last  *core.Failure
	)
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		logger.Debug("starting attempt", "attempt", attempt, "schema_version", snap.Version)

		msgs, err := o.cfg.Composer.Compose(ctx, snap, question, prior)
		if err != nil {
			return nil, &core.Failure{Kind: core.KindTranslation, Stage: core.StageGenerate, Attempts: attempt, Err: err}
		}

		cand, err := o.generate(ctx, logger, msgs, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceled(core.StageGenerate, attempt, ctx.Err())
			}
			last = &core.Failure{Kind: core.KindTranslation, Stage: core.StageGenerate, Attempts: attempt, Err: err}
			var gf *core.GenerationFailure
			if errors.As(err, &gf) {
				last.Reason = gf.Reason
			}
			switch {
			case errors.Is(err, core.ErrOracleUnavailable):
				last.Kind = core.KindOracleUnavailable
				return nil, last
			case last.Reason == core.ReasonOracleError:
				// Retries in place are spent; the prompt is unchanged.
				last.Kind = core.KindOracleUnavailable
			default:
				prior = &core.PriorAttempt{
					Candidate: core.CandidateQuery{Text: "(no query found in the reply)", Attempt: attempt},
					Reason:    core.ReasonEmptyResponse,
					Detail:    "respond with a single Cypher statement",
				}
				out.Rejected = append(out.Rejected, *prior)
			}
			continue
		}
		out.Query = cand.Text

		verdict := validator.Validate(cand, snap, o.cfg.Policy)
		o.observer.Validated(verdict)
		if !verdict.Accepted {
			logger.Debug("candidate rejected", "attempt", attempt, "verdict", verdict.String())
			last = &core.Failure{
				Kind:     core.KindTranslation,
				Stage:    core.StageValidate,
				Reason:   verdict.Reason,
				Fragment: verdict.Fragment,
				Detail:   verdict.Detail,
				Attempts: attempt,
				Err:      &core.ValidationFailure{Verdict: verdict},
			}
			prior = &core.PriorAttempt{Candidate: cand, Reason: verdict.Reason, Fragment: verdict.Fragment, Detail: verdict.Detail}
			out.Rejected = append(out.Rejected, *prior)
			continue
		}

		res, err := o.execute(ctx, logger, cand)
		if err == nil {
			out.Result = res
			if o.cfg.Answer {
				out.Answer = o.answer(ctx, logger, question, res)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, canceled(core.StageExecute, attempt, ctx.Err())
		}
		if core.IsTransient(err) {
			return nil, &core.Failure{
				Kind:     core.KindStoreUnavailable,
				Stage:    core.StageExecute,
				Attempts: attempt,
				Err:      fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err),
			}
		}

		detail := err.Error()
		var ef *core.ExecutionFailure
		if errors.As(err, &ef) && ef.Message != "" {
			detail = ef.Message
		}
		logger.Debug("store rejected query", "attempt", attempt, "error", detail)
		last = &core.Failure{
			Kind:     core.KindTranslation,
			Stage:    core.StageExecute,
			Reason:   core.ReasonExecutionError,
			Detail:   detail,
			Attempts: attempt,
			Err:      err,
		}
		prior = &core.PriorAttempt{Candidate: cand, Reason: core.ReasonExecutionError, Detail: detail}
		out.Rejected = append(out.Rejected, *prior)
	}
	return nil, last
}

// generate calls the oracle, retrying oracle errors in place with backoff.
// An open circuit breaker is not retried.
func (o *Orchestrator) generate(ctx context.Context, logger *slog.Logger, msgs []*schema.Message, attempt int) (core.CandidateQuery, error) {
	var cand core.CandidateQuery
	err := retry.Do(ctx, o.backoff(o.cfg.OracleRetries), func(ctx context.Context) error {
		start := time.Now()
		c, err := o.cfg.Generator.Generate(ctx, msgs, attempt)
		o.observer.Generated(time.Since(start), err)
		if err == nil {
			cand = c
			return nil
		}

		var gf *core.GenerationFailure
		if errors.As(err, &gf) && gf.Reason == core.ReasonOracleError &&
			!errors.Is(err, core.ErrOracleUnavailable) && ctx.Err() == nil {
			logger.Warn("oracle call failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return cand, err
}

// execute runs cand, re-executing after transient failures with backoff.
func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, cand core.CandidateQuery) (*core.Result, error) {
	var res *core.Result
	err := retry.Do(ctx, o.backoff(o.cfg.StoreRetries), func(ctx context.Context) error {
		start := time.Now()
		r, err := o.cfg.Executor.Execute(ctx, cand)
		o.observer.Executed(time.Since(start), err)
		if err == nil {
			res = r
			return nil
		}
		if core.IsTransient(err) {
			logger.Warn("store call failed", "attempt", cand.Attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return res, err
}

func (o *Orchestrator) backoff(retries int) retry.Backoff {
	b := retry.NewExponential(o.cfg.Backoff)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(o.cfg.MaxBackoff, b)
	return retry.WithMaxRetries(uint64(retries), b)
}

// answer asks the oracle to phrase the result. Failures are logged and
// leave the answer empty.
func (o *Orchestrator) answer(ctx context.Context, logger *slog.Logger, question string, res *core.Result) string {
	rows := res.Rows
	if len(rows) > o.cfg.AnswerContextRows {
		rows = rows[:o.cfg.AnswerContextRows]
	}
	data, err := json.Marshal(rows)
	if err != nil {
		logger.Warn("cannot serialize rows for answer", "error", err)
		return ""
	}

	msgs, err := prompt.Answer(ctx, question, string(data))
	if err != nil {
		logger.Warn("cannot render answer prompt", "error", err)
		return ""
	}
	text, err := o.cfg.Generator.Complete(ctx, msgs)
	if err != nil {
		logger.Warn("answer synthesis failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func canceled(stage core.Stage, attempts int, err error) *core.Failure {
	return &core.Failure{Kind: core.KindCanceled, Stage: stage, Attempts: attempts, Err: err}
}
