// Package generator asks the oracle for a query and extracts one Cypher
// statement from its reply.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sony/gobreaker"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 60 * time.Second

// BreakerConfig configures the circuit breaker around the oracle.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout the breaker stays open before probing again.
	Timeout time.Duration
	// ConsecutiveFailures that trip the breaker. Zero disables it.
	ConsecutiveFailures uint32
}

// DefaultBreaker trips after five consecutive oracle failures.
func DefaultBreaker() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Config configures a Generator.
type Config struct {
	Model   model.BaseChatModel
	Timeout time.Duration
	Breaker BreakerConfig
	Logger  *slog.Logger
}

// Generator turns composed prompts into candidate queries.
type Generator struct {
	model   model.BaseChatModel
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New creates a Generator.
func New(cfg Config) *Generator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	g := &Generator{model: cfg.Model, timeout: timeout, logger: logger}
	if b := cfg.Breaker; b.ConsecutiveFailures > 0 {
		g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "oracle",
			MaxRequests: b.MaxRequests,
			Interval:    b.Interval,
			Timeout:     b.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= b.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
			// A caller giving up says nothing about the oracle.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
	}
	return g
}

// Generate asks the oracle for a query and returns the single statement
// found in its reply. Errors are *core.GenerationFailure; when the breaker
// is open the failure also wraps core.ErrOracleUnavailable.
func (g *Generator) Generate(ctx context.Context, msgs []*schema.Message, attempt int) (core.CandidateQuery, error) {
	text, err := g.Complete(ctx, msgs)
	if err != nil {
		return core.CandidateQuery{}, err
	}

	query, ok := Extract(text)
	if !ok {
		g.logger.Debug("oracle reply has no query", "attempt", attempt, "reply_len", len(text))
		return core.CandidateQuery{}, &core.GenerationFailure{
			Reason: core.ReasonEmptyResponse,
			Err:    errors.New("oracle reply contains no query"),
		}
	}
	return core.CandidateQuery{Text: query, Attempt: attempt}, nil
}

// Complete returns the oracle's raw reply text.
func (g *Generator) Complete(ctx context.Context, msgs []*schema.Message) (string, error) {
	if g.model == nil {
		return "", &core.GenerationFailure{Reason: core.ReasonOracleError, Err: core.ErrOracleUnavailable}
	}

	call := func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.model.Generate(ctx, msgs)
	}

	var (
		out any
		err error
	)
	if g.cb != nil {
		out, err = g.cb.Execute(call)
	} else {
		out, err = call()
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", core.ErrOracleUnavailable, err)
		}
		return "", &core.GenerationFailure{Reason: core.ReasonOracleError, Err: err}
	}

	msg, _ := out.(*schema.Message)
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
