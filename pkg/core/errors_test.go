package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailure_Error(t *testing.T) {
	tests := []struct {
		name    string
		failure *Failure
		want    string
	}{
		{
			name:    "input",
			failure: &Failure{Kind: KindInput, Stage: StageInput, Err: &InputError{Message: "empty question"}},
			want:    "invalid input: empty question",
		},
		{
			name: "translation with fragment",
			failure: &Failure{
				Kind: KindTranslation, Stage: StageValidate, Reason: ReasonUnknownSchema,
				Fragment: "Film", Attempts: 3,
			},
			want: `translation failed after 3 attempt(s): unknown-schema-element near "Film"`,
		},
		{
			name: "store unavailable",
			failure: &Failure{
				Kind: KindStoreUnavailable, Stage: StageExecute, Attempts: 1,
				Err: ErrStoreUnavailable,
			},
			want: "store-unavailable at execute stage after 1 attempt(s): graph store unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.failure.Error())
		})
	}
}

func TestFailure_Unwrap(t *testing.T) {
	f := &Failure{Kind: KindStoreUnavailable, Err: fmt.Errorf("%w: dial tcp: refused", ErrStoreUnavailable)}
	assert.True(t, errors.Is(f, ErrStoreUnavailable))
	assert.False(t, errors.Is(f, ErrOracleUnavailable))

	var wrapped error = fmt.Errorf("serve: %w", f)
	var got *Failure
	assert.True(t, errors.As(wrapped, &got))
	assert.Equal(t, KindStoreUnavailable, got.Kind)
}

func TestExecutionFailure(t *testing.T) {
	cause := errors.New("connection reset")
	transient := &ExecutionFailure{Kind: ExecTransient, Err: cause}
	assert.Equal(t, "execution failed (transient): connection reset", transient.Error())
	assert.True(t, IsTransient(transient))
	assert.True(t, errors.Is(transient, cause))

	permanent := &ExecutionFailure{
		Kind:    ExecPermanent,
		Code:    "Neo.ClientError.Statement.SyntaxError",
		Message: "Invalid input 'RETRN'",
	}
	assert.Equal(t, "execution failed (permanent, Neo.ClientError.Statement.SyntaxError): Invalid input 'RETRN'", permanent.Error())
	assert.False(t, IsTransient(permanent))
	assert.False(t, IsTransient(cause))
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "accepted", Accept().String())

	v := Verdict{Reason: ReasonDisallowed, Fragment: "DETACH DELETE n", Detail: "variable n is not scoped"}
	assert.Equal(t, `disallowed-operation "DETACH DELETE n": variable n is not scoped`, v.String())

	err := &ValidationFailure{Verdict: v}
	assert.Contains(t, err.Error(), "query rejected")
}

func TestResult_Values(t *testing.T) {
	r := &Result{
		Columns: []string{"name", "born"},
		Rows: []map[string]any{
			{"name": "Tom Cruise", "born": int64(1962)},
			{"born": int64(1964), "name": "Val Kilmer"},
		},
	}
	assert.Equal(t, [][]any{
		{"Tom Cruise", int64(1962)},
		{"Val Kilmer", int64(1964)},
	}, r.Values())
}
