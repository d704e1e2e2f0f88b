// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import "fmt"

// Identity is the resolved credentials of a connected peer. It is
// immutable after resolution and lives exactly as long as the
// connection it was resolved from.
type Identity struct {
	// UID is the effective user ID of the peer process.
	UID uint32

	// PID is the process ID of the peer at connect time. Informational
	// only — it is never used for authorization decisions, since the
	// process may have exited and the ID been reused.
	PID uint32

	// GID is the effective group ID of the peer process.
	GID uint32

	// SecurityContext is the peer's LSM security label (for example
	// "u:r:cros_healthd:s0"), or empty when the kernel has no LSM
	// active. Used only by the legacy context-based policy scheme.
	SecurityContext string
}

// String renders the identity for log output.
func (id Identity) String() string {
	if id.SecurityContext != "" {
		return fmt.Sprintf("uid=%d pid=%d context=%s", id.UID, id.PID, id.SecurityContext)
	}
	return fmt.Sprintf("uid=%d pid=%d", id.UID, id.PID)
}
