// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Reason is the numeric code attached to a refused or abandoned
// broker operation. Codes are part of the wire protocol and must not
// be renumbered.
type Reason uint32

const (
	// ReasonUnexpectedOsError covers internal failures: a broken
	// provider channel, a full pending queue, a descriptor the kernel
	// refused to forward.
	ReasonUnexpectedOsError Reason = 1

	// ReasonServiceNotFound is returned for a service name absent
	// from every loaded policy (and, outside ad hoc mode, never
	// registrable).
	ReasonServiceNotFound Reason = 2

	// ReasonPermissionDenied is returned when the caller's identity
	// is not the declared owner (register) or holds no request grant
	// (request, query).
	ReasonPermissionDenied Reason = 3

	// ReasonServiceAlreadyRegistered is returned to a second provider
	// while an owner is live.
	ReasonServiceAlreadyRegistered Reason = 4

	// ReasonTimeout is returned when a pending request's deadline
	// elapses before a provider registers.
	ReasonTimeout Reason = 5
)

func (r Reason) String() string {
	switch r {
	case ReasonUnexpectedOsError:
		return "unexpected OS error"
	case ReasonServiceNotFound:
		return "service not found"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonServiceAlreadyRegistered:
		return "service already registered"
	case ReasonTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("reason(%d)", uint32(r))
	}
}
