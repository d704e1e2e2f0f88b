// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/switchboard-dev/switchboard/lib/clock"
	"github.com/switchboard-dev/switchboard/lib/identity"
	"github.com/switchboard-dev/switchboard/lib/policy"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// Options configures a Registry.
type Options struct {
	// Permissive disables ownership and requester enforcement.
	// Service existence is still checked: an undeclared name gets
	// ReasonServiceNotFound unless AllowAdHocServices is also set.
	Permissive bool

	// AllowAdHocServices lets Register and Request create entries
	// for names absent from every loaded policy. Only honored in
	// permissive mode.
	AllowAdHocServices bool

	// MaxPendingRequests caps each service's pending queue. Zero
	// means unbounded, matching the historical behavior; a full
	// queue refuses the new request with ReasonUnexpectedOsError.
	MaxPendingRequests int

	// Clock drives pending-request deadlines. Defaults to Real().
	Clock clock.Clock

	// Logger receives refusal and delivery-failure logs. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Metrics, when non-nil, receives operation counters and gauges.
	Metrics *Metrics
}

// entry is the per-service runtime record. Entries are created for
// every policy key at construction (plus ad hoc names when enabled)
// and live for the process lifetime — they move between registered
// and unregistered but are never deleted.
type entry struct {
	name    string
	policy  *policy.ServicePolicy
	owner   *ownerState
	pending requestQueue
}

// ownerState is the live provider of a registered service.
type ownerState struct {
	identity identity.Identity
	provider Provider
}

// Registry is the broker: it maps service names to their runtime
// state and enforces the loaded policy on every operation. Safe for
// concurrent use; see the package comment for the execution model.
type Registry struct {
	permissive bool
	allowAdHoc bool
	maxPending int
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *Metrics

	mu        sync.Mutex
	entries   map[string]*entry
	observers map[Observer]identity.Identity
}

// NewRegistry builds a Registry over a loaded policy map. One entry
// is created per policy key, so a declared-but-never-registered
// service answers Query without error.
func NewRegistry(policies policy.Map, opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Registry{
		permissive: opts.Permissive,
		allowAdHoc: opts.Permissive && opts.AllowAdHocServices,
		maxPending: opts.MaxPendingRequests,
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		entries:    make(map[string]*entry, len(policies)),
		observers:  make(map[Observer]identity.Identity),
	}
	for name, p := range policies {
		r.entries[name] = &entry{name: name, policy: p}
	}
	return r
}

// Register makes the caller the provider of the named service. On
// refusal the provider handle is closed with the reason and the same
// reason is returned as a *Error. On success the pending queue is
// flushed to the new provider in arrival order and a registered event
// is broadcast.
func (r *Registry) Register(id identity.Identity, service string, provider Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(service)
	if e == nil {
		return r.refuseLocked("register", provider, wire.ReasonServiceNotFound,
			"service %q is not declared by any policy", service)
	}
	if !r.permissive && !e.policy.IsOwner(id) {
		return r.refuseLocked("register", provider, wire.ReasonPermissionDenied,
			"%s does not own service %q", id, service)
	}
	if e.owner != nil {
		return r.refuseLocked("register", provider, wire.ReasonServiceAlreadyRegistered,
			"service %q already has a provider (%s)", service, e.owner.identity)
	}

	e.owner = &ownerState{identity: id, provider: provider}
	provider.Registered(service)
	r.metrics.serviceRegistered()
	r.metrics.operation("register", "ok")

	flushed := e.pending.flush()
	r.metrics.requestsDequeued(len(flushed))
	for _, pr := range flushed {
		r.deliverLocked(e, pr.requester, pr.dest)
	}

	r.broadcastLocked(e, wire.Event{
		Type:    wire.EventRegistered,
		Service: service,
		Peer:    wire.PeerFromIdentity(id),
	})
	r.logger.Info("service registered", "service", service, "provider", id.String(), "flushed", len(flushed))
	return nil
}

// Unregister reverts the named service to the unregistered state and
// broadcasts an unregistered event. The provider argument guards
// against stale disconnect notifications: the call is a no-op unless
// that exact handle is still the owner.
func (r *Registry) Unregister(service string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[service]
	if e == nil || e.owner == nil || e.owner.provider != provider {
		return
	}
	id := e.owner.identity
	e.owner = nil
	r.metrics.serviceUnregistered()

	r.broadcastLocked(e, wire.Event{
		Type:    wire.EventUnregistered,
		Service: service,
		Peer:    wire.PeerFromIdentity(id),
	})
	r.logger.Info("service unregistered", "service", service, "provider", id.String())
}

// Request asks for a connection to the named service. A registered
// service gets the endpoint immediately; an unregistered one queues
// the request. A positive timeout arms a deadline that, on expiry,
// removes only this request and refuses it with ReasonTimeout.
// timeout <= 0 waits until a provider registers or the request is
// canceled.
func (r *Registry) Request(id identity.Identity, service string, timeout time.Duration, dest Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(service)
	if e == nil {
		return r.refuseLocked("request", dest, wire.ReasonServiceNotFound,
			"service %q is not declared by any policy", service)
	}
	if !r.permissive && !e.policy.IsRequester(id) {
		return r.refuseLocked("request", dest, wire.ReasonPermissionDenied,
			"%s may not request service %q", id, service)
	}

	if e.owner != nil {
		r.deliverLocked(e, id, dest)
		return nil
	}

	if r.maxPending > 0 && e.pending.len() >= r.maxPending {
		return r.refuseLocked("request", dest, wire.ReasonUnexpectedOsError,
			"service %q has %d requests pending, refusing more", service, e.pending.len())
	}

	pr := &pendingRequest{
		requester:  id,
		dest:       dest,
		enqueuedAt: r.clock.Now(),
	}
	e.pending.enqueue(pr)
	if timeout > 0 {
		pr.timer = r.clock.AfterFunc(timeout, func() { r.expire(e, pr) })
	}
	r.metrics.operation("request", "queued")
	r.metrics.requestsEnqueued(1)
	return nil
}

// Cancel removes a still-queued request whose caller has abandoned
// its connection. No reason is sent — there is nobody left to hear
// it. Returns true when the request was still pending, which tells
// the transport it still owns the destination endpoint; false means
// the request was already delivered, refused, or expired.
func (r *Registry) Cancel(service string, dest Requester) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[service]
	if e == nil {
		return false
	}
	pr := e.pending.removeByDest(dest)
	if pr == nil {
		return false
	}
	if pr.timer != nil {
		pr.timer.Stop()
	}
	r.metrics.requestsDequeued(1)
	r.metrics.operation("request", "canceled")
	return true
}

// Query reports whether the named service has a live provider, and
// who it is. Same authorization as Request, but read-only: it never
// queues and has no side effects.
func (r *Registry) Query(id identity.Identity, service string) (wire.ServiceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entries[service]
	if e == nil {
		r.metrics.operation("query", "not_found")
		return wire.ServiceState{}, &Error{
			Reason:  wire.ReasonServiceNotFound,
			Message: fmt.Sprintf("service %q is not declared by any policy", service),
		}
	}
	if !r.permissive && !e.policy.IsRequester(id) {
		r.metrics.operation("query", "denied")
		return wire.ServiceState{}, &Error{
			Reason:  wire.ReasonPermissionDenied,
			Message: fmt.Sprintf("%s may not query service %q", id, service),
		}
	}

	r.metrics.operation("query", "ok")
	if e.owner == nil {
		return wire.ServiceState{Registered: false}, nil
	}
	owner := wire.PeerFromIdentity(e.owner.identity)
	return wire.ServiceState{Registered: true, Owner: &owner}, nil
}

// AddObserver subscribes a handle to lifecycle events. Each event for
// a service S reaches only observers whose identity may request S; in
// permissive mode every observer hears everything.
func (r *Registry) AddObserver(id identity.Identity, o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[o] = id
}

// RemoveObserver unsubscribes a handle. Safe to call for an observer
// that was never added.
func (r *Registry) RemoveObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, o)
}

// entryLocked returns the entry for service, creating one on the fly
// when ad hoc services are enabled and the name is valid. Returns nil
// for an unknown name otherwise.
func (r *Registry) entryLocked(service string) *entry {
	if e, ok := r.entries[service]; ok {
		return e
	}
	if !r.allowAdHoc || policy.ValidateServiceName(service) != nil {
		return nil
	}
	e := &entry{name: service, policy: policy.NewServicePolicy()}
	r.entries[service] = e
	return e
}

// deliverLocked hands an endpoint to the entry's live provider. A
// delivery failure is scoped to the one request: the endpoint is
// refused, the provider stays registered (its disconnect, if that is
// what broke delivery, arrives separately via Unregister).
func (r *Registry) deliverLocked(e *entry, requester identity.Identity, dest Requester) {
	if err := e.owner.provider.Deliver(requester, dest); err != nil {
		r.logger.Warn("delivering request failed",
			"service", e.name,
			"requester", requester.String(),
			"error", err,
		)
		dest.CloseWithReason(wire.ReasonUnexpectedOsError, "forwarding to provider failed")
		r.metrics.operation("request", "error")
		return
	}
	dest.Delivered()
	r.metrics.operation("request", "delivered")
}

// expire is the deadline callback for one pending request. If the
// request is still queued it is removed — siblings keep their order
// and timers — and refused with ReasonTimeout.
func (r *Registry) expire(e *entry, pr *pendingRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !e.pending.remove(pr) {
		return
	}
	pr.dest.CloseWithReason(wire.ReasonTimeout,
		fmt.Sprintf("no provider registered service %q before the deadline", e.name))
	r.metrics.requestsDequeued(1)
	r.metrics.operation("request", "timeout")
}

// closeWithReasoner is the common surface of Provider and Requester
// used by refuseLocked.
type closeWithReasoner interface {
	CloseWithReason(reason wire.Reason, message string)
}

// refuseLocked closes a handle with a reason and returns the matching
// *Error.
func (r *Registry) refuseLocked(op string, h closeWithReasoner, reason wire.Reason, format string, args ...any) error {
	brokerErr := &Error{Reason: reason, Message: fmt.Sprintf(format, args...)}
	h.CloseWithReason(brokerErr.Reason, brokerErr.Message)
	r.metrics.operation(op, outcomeLabel(reason))
	r.logger.Debug("operation refused", "op", op, "reason", reason.String(), "detail", brokerErr.Message)
	return brokerErr
}

// broadcastLocked fans an event out to every authorized observer,
// synchronously with the transition that caused it.
func (r *Registry) broadcastLocked(e *entry, event wire.Event) {
	for o, id := range r.observers {
		if !r.permissive && !e.policy.IsRequester(id) {
			continue
		}
		o.Notify(event)
	}
	r.metrics.eventBroadcast(string(event.Type))
}

// outcomeLabel maps a refusal reason to its metric label.
func outcomeLabel(reason wire.Reason) string {
	switch reason {
	case wire.ReasonServiceNotFound:
		return "not_found"
	case wire.ReasonPermissionDenied:
		return "denied"
	case wire.ReasonServiceAlreadyRegistered:
		return "already_registered"
	case wire.ReasonTimeout:
		return "timeout"
	default:
		return "error"
	}
}
