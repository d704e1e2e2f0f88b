// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	c := Fake(time.Unix(1000, 0))

	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(10*time.Second, func() { order = append(order, "never") })

	c.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("fired %v, want [a b]", order)
	}
	if got := c.Now(); !got.Equal(time.Unix(1005, 0)) {
		t.Errorf("Now = %v, want advanced by 5s", got)
	}
}

func TestFakeCallbackSeesItsOwnFireTime(t *testing.T) {
	start := time.Unix(1000, 0)
	c := Fake(start)

	var at time.Time
	c.AfterFunc(2*time.Second, func() { at = c.Now() })
	c.Advance(10 * time.Second)

	if !at.Equal(start.Add(2 * time.Second)) {
		t.Errorf("callback saw %v, want deadline %v", at, start.Add(2*time.Second))
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(time.Unix(1000, 0))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report the timer stopped")
	}
	if timer.Stop() {
		t.Error("second Stop should report already stopped")
	}

	c.Advance(5 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeZeroDurationRunsSynchronously(t *testing.T) {
	c := Fake(time.Unix(1000, 0))
	fired := false
	timer := c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Error("zero-duration callback should run before AfterFunc returns")
	}
	if timer.Stop() {
		t.Error("Stop after firing should report false")
	}
}

func TestFakeCallbackMaySchedule(t *testing.T) {
	c := Fake(time.Unix(1000, 0))

	fired := false
	c.AfterFunc(time.Second, func() {
		// Scheduling from a callback must not deadlock; the new
		// timer fires within the same Advance window.
		c.AfterFunc(time.Second, func() { fired = true })
	})

	c.Advance(3 * time.Second)
	if !fired {
		t.Error("timer scheduled from callback did not fire")
	}
}
