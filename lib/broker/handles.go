// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"github.com/switchboard-dev/switchboard/lib/identity"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// Provider is the broker-side handle for a connection that registered
// (or tried to register) a service. Implementations must not block:
// the registry invokes these methods while holding its lock.
type Provider interface {
	// Registered confirms the registration. Called exactly once, and
	// always before the first Deliver.
	Registered(service string)

	// Deliver forwards a requester's endpoint to the provider. On a
	// non-nil error the registry keeps the requester handle and
	// refuses it; on success ownership of the endpoint has passed to
	// the provider process.
	Deliver(requester identity.Identity, dest Requester) error

	// CloseWithReason refuses the registration and releases the
	// handle. Called at most once, and never after Registered.
	CloseWithReason(reason wire.Reason, message string)
}

// Requester is the broker-side handle for one connection request: the
// destination endpoint plus the way to answer the caller.
type Requester interface {
	// Delivered reports that a provider accepted the endpoint. The
	// handle is consumed.
	Delivered()

	// CloseWithReason refuses the request, closing the destination
	// endpoint with the given reason. The handle is consumed.
	CloseWithReason(reason wire.Reason, message string)
}

// Observer receives service lifecycle events. Notify is called with
// the registry lock held and must not block; transports buffer and
// drop rather than stall the broker.
type Observer interface {
	Notify(event wire.Event)
}
