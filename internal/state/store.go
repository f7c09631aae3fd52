// Package state records translation runs in a local SQLite database so
// past questions, the queries they produced and how they ended can be
// reviewed later.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/translate"
)

// RunStatus is how a translation ended.
type RunStatus string

// Run statuses.
const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one recorded translation.
type Run struct {
	ID        string           `json:"id"`
	Question  string           `json:"question"`
	Query     string           `json:"query,omitempty"`
	Status    RunStatus        `json:"status"`
	Kind      core.FailureKind `json:"kind,omitempty"`
	Stage     core.Stage       `json:"stage,omitempty"`
	Reason    core.Reason      `json:"reason,omitempty"`
	Attempts  int              `json:"attempts"`
	RowCount  int              `json:"row_count"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	Elapsed   time.Duration    `json:"elapsed"`
}

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// StateStore persists translation runs.
type StateStore interface {
	// RecordRun stores a run, replacing any run with the same id.
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	// PruneRuns deletes all but the keep most recent runs.
	PruneRuns(ctx context.Context, keep int) (int64, error)
	Close() error
}

// NewRun builds the record of a translation from its outcome or its
// terminal error. Exactly one of out and err is expected to be set.
func NewRun(id, question string, started time.Time, out *translate.Outcome, err error) *Run {
	run := &Run{
		ID:        id,
		Question:  question,
		StartedAt: started.UTC(),
		Elapsed:   time.Since(started),
	}
	if out != nil {
		run.ID = out.TraceID
		run.Query = out.Query
		run.Status = RunStatusSuccess
		run.Attempts = out.Attempts
		if out.Result != nil {
			run.RowCount = out.Result.RowCount
		}
		return run
	}

	run.Status = RunStatusFailed
	if err != nil {
		run.Error = err.Error()
	}
	var f *core.Failure
	if errors.As(err, &f) {
		run.Kind = f.Kind
		run.Stage = f.Stage
		run.Reason = f.Reason
		run.Attempts = f.Attempts
	}
	return run
}
