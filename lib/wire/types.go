// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "github.com/switchboard-dev/switchboard/lib/identity"

// Connection role actions, carried in the first record of every
// connection.
const (
	ActionRegister = "register"
	ActionRequest  = "request"
	ActionQuery    = "query"
	ActionObserve  = "observe"
)

// Request is the first record a client sends on a new connection.
type Request struct {
	// Action declares the connection role: "register", "request",
	// "query", or "observe".
	Action string `cbor:"action"`

	// Service names the target service. Required for every action
	// except "observe".
	Service string `cbor:"service,omitempty"`

	// TimeoutMillis bounds how long a request may stay queued behind
	// an unregistered service. Nil means wait until a provider
	// registers or the connection is abandoned. Only meaningful for
	// "request".
	TimeoutMillis *int64 `cbor:"timeout_ms,omitempty"`
}

// Response reports the outcome of the connection's request.
type Response struct {
	OK bool `cbor:"ok"`

	// Code and Error carry the refusal when OK is false.
	Code  Reason `cbor:"code,omitempty"`
	Error string `cbor:"error,omitempty"`

	// State is the query result, present only for "query" successes.
	State *ServiceState `cbor:"state,omitempty"`
}

// ServiceState is the answer to a query: whether the service has a
// live provider, and who that provider is.
type ServiceState struct {
	Registered bool  `cbor:"registered"`
	Owner      *Peer `cbor:"owner,omitempty"`
}

// Incoming is pushed on a provider channel for each delivered
// request. The forwarded descriptor (the requester's socketpair half)
// rides alongside as SCM_RIGHTS ancillary data.
type Incoming struct {
	Requester Peer `cbor:"requester"`
}

// EventType classifies a service lifecycle transition.
type EventType string

const (
	EventRegistered   EventType = "registered"
	EventUnregistered EventType = "unregistered"
)

// Event is pushed to observers on every ownership transition.
type Event struct {
	Type    EventType `cbor:"type"`
	Service string    `cbor:"service"`

	// Peer identifies the provider that registered or disappeared.
	Peer Peer `cbor:"peer"`
}

// Peer is the wire form of a resolved peer identity.
type Peer struct {
	UID             uint32 `cbor:"uid"`
	PID             uint32 `cbor:"pid"`
	GID             uint32 `cbor:"gid"`
	SecurityContext string `cbor:"security_context,omitempty"`
}

// PeerFromIdentity converts a resolved identity to its wire form.
func PeerFromIdentity(id identity.Identity) Peer {
	return Peer{
		UID:             id.UID,
		PID:             id.PID,
		GID:             id.GID,
		SecurityContext: id.SecurityContext,
	}
}

// Identity converts the wire form back to an identity value.
func (p Peer) Identity() identity.Identity {
	return identity.Identity{
		UID:             p.UID,
		PID:             p.PID,
		GID:             p.GID,
		SecurityContext: p.SecurityContext,
	}
}
