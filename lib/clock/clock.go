// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock provides current time and one-shot timers. Code that schedules
// deadlines accepts a Clock instead of calling the time package
// directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real clock) or synchronously from Advance (fake
	// clock). The returned Timer cancels the pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled one-shot callback.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns false if the timer has
// already fired or been stopped. A false return does not mean the
// callback has finished — it may still be running concurrently.
func (t *Timer) Stop() bool { return t.stopFunc() }
