package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for unavailable collaborators.
var (
	ErrStoreUnavailable  = errors.New("graph store unavailable")
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// InputError is returned when a request cannot be processed at all.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Message
}

// GenerationFailure is returned when the oracle produced no usable query.
type GenerationFailure struct {
	Reason Reason
	Err    error
}

func (e *GenerationFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("query generation failed (%s)", e.Reason)
	}
	return fmt.Sprintf("query generation failed (%s): %v", e.Reason, e.Err)
}

func (e *GenerationFailure) Unwrap() error { return e.Err }

// ValidationFailure wraps a rejecting verdict.
type ValidationFailure struct {
	Verdict Verdict
}

func (e *ValidationFailure) Error() string {
	return "query rejected: " + e.Verdict.String()
}

// ExecKind classifies an execution failure.
type ExecKind string

// Execution failure kinds.
const (
	// ExecTransient failures are retried without regenerating the query.
	ExecTransient ExecKind = "transient"
	// ExecPermanent failures mean the store rejected the query itself.
	ExecPermanent ExecKind = "permanent"
)

// ExecutionFailure is returned when the store could not run a query.
type ExecutionFailure struct {
	Kind ExecKind
	// Code is the store's error code, when it reports one.
	Code    string
	Message string
	Err     error
}

func (e *ExecutionFailure) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("execution failed (%s, %s): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("execution failed (%s): %s", e.Kind, msg)
}

func (e *ExecutionFailure) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient execution failure.
func IsTransient(err error) bool {
	var ef *ExecutionFailure
	return errors.As(err, &ef) && ef.Kind == ExecTransient
}

// =============================================================================
// Terminal failure
// =============================================================================

// Stage names a step of the translation pipeline.
type Stage string

// Pipeline stages.
const (
	StageInput    Stage = "input"
	StageSchema   Stage = "schema"
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StageExecute  Stage = "execute"
)

// FailureKind is the user-facing category of a terminal failure.
type FailureKind string

// Terminal failure kinds.
const (
	KindInput             FailureKind = "input"
	KindTranslation       FailureKind = "translation"
	KindStoreUnavailable  FailureKind = "store-unavailable"
	KindOracleUnavailable FailureKind = "oracle-unavailable"
	KindCanceled          FailureKind = "canceled"
)

// Failure is the terminal error of a translation. It never carries prompt
// text.
type Failure struct {
	Kind     FailureKind
	Stage    Stage
	Reason   Reason
	Fragment string
	Detail   string
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	var b strings.Builder
	switch f.Kind {
	case KindInput:
		if f.Err != nil {
			return f.Err.Error()
		}
		return "invalid input"
	case KindStoreUnavailable, KindOracleUnavailable, KindCanceled:
		fmt.Fprintf(&b, "%s at %s stage after %d attempt(s)", f.Kind, f.Stage, f.Attempts)
		if f.Err != nil {
			fmt.Fprintf(&b, ": %v", f.Err)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "translation failed after %d attempt(s)", f.Attempts)
	if f.Reason != "" {
		fmt.Fprintf(&b, ": %s", f.Reason)
	}
	if f.Fragment != "" {
		fmt.Fprintf(&b, " near %q", f.Fragment)
	}
	if f.Detail != "" {
		fmt.Fprintf(&b, " (%s)", f.Detail)
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }
