// Package clock abstracts wall-clock time so deadline timers can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by the dispatch engine.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine (real) or during Advance
	// (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer cancels a pending AfterFunc call.
type Timer interface {
	// Stop returns true if the call was prevented, false if it already
	// fired or was stopped before.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
