// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"time"

	"github.com/switchboard-dev/switchboard/lib/clock"
	"github.com/switchboard-dev/switchboard/lib/identity"
)

// pendingRequest is one queued connection attempt awaiting a
// provider, with an optional deadline timer.
type pendingRequest struct {
	requester  identity.Identity
	dest       Requester
	enqueuedAt time.Time

	// timer is nil for requests without a deadline. A fired timer
	// removes exactly this entry; flushing the queue stops it.
	timer *clock.Timer
}

// requestQueue is a per-service FIFO of pending requests. All access
// happens under the registry lock, so the queue itself has none.
type requestQueue struct {
	entries []*pendingRequest
}

func (q *requestQueue) len() int {
	return len(q.entries)
}

func (q *requestQueue) enqueue(pr *pendingRequest) {
	q.entries = append(q.entries, pr)
}

// remove drops the given entry, preserving the order of its siblings.
// Returns false when the entry is no longer queued — it was already
// delivered, expired, or canceled.
func (q *requestQueue) remove(pr *pendingRequest) bool {
	for i, candidate := range q.entries {
		if candidate == pr {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// removeByDest drops the entry holding the given destination handle.
// Used when a requester abandons its connection while queued.
func (q *requestQueue) removeByDest(dest Requester) *pendingRequest {
	for i, candidate := range q.entries {
		if candidate.dest == dest {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return candidate
		}
	}
	return nil
}

// flush empties the queue and returns every entry in arrival order,
// with all deadline timers stopped. A timer that already fired but
// has not yet run finds its entry gone and does nothing.
func (q *requestQueue) flush() []*pendingRequest {
	flushed := q.entries
	q.entries = nil
	for _, pr := range flushed {
		if pr.timer != nil {
			pr.timer.Stop()
		}
	}
	return flushed
}
