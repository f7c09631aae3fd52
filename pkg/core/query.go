package core

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/graphask/pkg/token"
)

// =============================================================================
// Reasons
// =============================================================================

// Reason names why an attempt did not produce a result.
type Reason string

// Rejection and failure reasons.
const (
	ReasonMalformedSyntax Reason = "malformed-syntax"
	ReasonUnknownSchema   Reason = "unknown-schema-element"
	ReasonDisallowed      Reason = "disallowed-operation"
	ReasonEmptyResponse   Reason = "empty-response"
	ReasonOracleError     Reason = "oracle-error"
	ReasonExecutionError  Reason = "execution-error"
)

// =============================================================================
// Request / Candidate
// =============================================================================

// Request is a single translation request.
type Request struct {
	Question string
	Prior    *PriorAttempt
}

// PriorAttempt carries the rejected candidate of a previous attempt so the
// next prompt can ask the oracle not to repeat the error.
type PriorAttempt struct {
	Candidate CandidateQuery
	Reason    Reason
	Fragment  string
	Detail    string
}

// CandidateQuery is query text produced by the oracle.
type CandidateQuery struct {
	Text    string
	Attempt int
}

// =============================================================================
// Verdict
// =============================================================================

// Verdict is the outcome of validating a candidate.
type Verdict struct {
	Accepted bool
	Reason   Reason
	// Fragment is the offending identifier or clause.
	Fragment string
	Detail   string
	Pos      token.Position
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject returns a rejecting verdict.
func Reject(reason Reason, fragment, detail string, pos token.Position) Verdict {
	return Verdict{Reason: reason, Fragment: fragment, Detail: detail, Pos: pos}
}

func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	s := string(v.Reason)
	if v.Fragment != "" {
		s += fmt.Sprintf(" %q", v.Fragment)
	}
	if v.Detail != "" {
		s += ": " + v.Detail
	}
	return s
}

// =============================================================================
// Result
// =============================================================================

// Result holds the records returned by the store, in order.
type Result struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Elapsed   time.Duration    `json:"-"`
	Truncated bool             `json:"truncated,omitempty"`
}

// Values returns the row values in column order.
func (r *Result) Values() [][]any {
	out := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		vals := make([]any, len(r.Columns))
		for j, col := range r.Columns {
			vals[j] = row[col]
		}
		out[i] = vals
	}
	return out
}
