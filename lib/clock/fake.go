// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at the given time. Timers fire only
// when Advance moves the clock past their deadline.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
//
// Advance invokes due callbacks synchronously, in deadline order, with
// the clock's own lock released — callbacks may schedule new timers or
// take their caller's locks, but must not call Advance themselves.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeTimer
}

// fakeTimer is one pending AfterFunc registration.
type fakeTimer struct {
	deadline time.Time
	callback func()

	// stopped is set by Timer.Stop; fired marks a callback that
	// Advance has already dispatched. Either way the timer is dead.
	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc schedules f to run when the clock advances past d from
// the current fake time. If d <= 0, f runs synchronously before
// AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	waiter := &fakeTimer{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if waiter.stopped || waiter.fired {
			return false
		}
		waiter.stopped = true
		return true
	}}
}

// Advance moves the clock forward by d, firing every pending timer
// whose deadline falls within the window, in deadline order. Each
// callback runs with the clock already set to that timer's deadline,
// so a callback reading Now sees its own fire time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)

	for {
		next := c.nextDueLocked(target)
		if next == nil {
			break
		}
		next.fired = true
		c.current = next.deadline

		// Run the callback without holding the lock: callbacks
		// routinely take the broker's lock, which itself stops
		// timers on this clock.
		c.mu.Unlock()
		next.callback()
		c.mu.Lock()
	}

	c.current = target
	c.compactLocked()
	c.mu.Unlock()
}

// nextDueLocked returns the live waiter with the earliest deadline at
// or before target, or nil when none is due.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	var due *fakeTimer
	for _, w := range c.waiters {
		if w.stopped || w.fired || w.deadline.After(target) {
			continue
		}
		if due == nil || w.deadline.Before(due.deadline) {
			due = w
		}
	}
	return due
}

// compactLocked drops dead waiters so long-running tests do not
// accumulate them.
func (c *FakeClock) compactLocked() {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			live = append(live, w)
		}
	}
	c.waiters = live
}
