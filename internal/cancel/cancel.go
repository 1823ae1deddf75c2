// Package cancel provides the cooperative cancellation flag polled by the
// long-running search loops. The core has no async points; cancellation is
// the only time knob.
package cancel

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Flag is polled at phase boundaries, at path extension, and in the
// shadowing loop. Check returns a non-nil error to stop the operation.
type Flag interface {
	Check(at string) error
}

// Error reports where a cancelled operation was stopped.
type Error struct {
	At string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cancelled at %s", e.At)
}

// None is a Flag that never cancels.
type None struct{}

func (None) Check(string) error { return nil }

// AtomicFlag cancels once Cancel has been called, from any goroutine.
type AtomicFlag struct {
	cancelled atomic.Bool
}

// Cancel signals the flag.
func (f *AtomicFlag) Cancel() {
	f.cancelled.Store(true)
}

func (f *AtomicFlag) Check(at string) error {
	if f.cancelled.Load() {
		return &Error{At: at}
	}
	return nil
}

// Deadline cancels every check after a point in time.
type Deadline struct {
	At time.Time
}

// AfterTimeout returns a Deadline that cancels after d from now.
func AfterTimeout(d time.Duration) *Deadline {
	return &Deadline{At: time.Now().Add(d)}
}

func (f *Deadline) Check(at string) error {
	if time.Now().After(f.At) {
		return &Error{At: at}
	}
	return nil
}
