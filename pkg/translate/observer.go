package translate

import (
	"time"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// Observer receives pipeline events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	// Generated is called after every oracle call, including in-place
	// retries.
	Generated(d time.Duration, err error)
	// Validated is called with every verdict.
	Validated(v core.Verdict)
	// Executed is called after every Execute call.
	Executed(d time.Duration, err error)
	// Finished is called once per translation with either the outcome or
	// the terminal error.
	Finished(out *Outcome, err error, d time.Duration)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Generated(time.Duration, error)          {}
func (NopObserver) Validated(core.Verdict)                  {}
func (NopObserver) Executed(time.Duration, error)           {}
func (NopObserver) Finished(*Outcome, error, time.Duration) {}
