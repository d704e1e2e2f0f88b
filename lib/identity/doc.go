// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity models the resolved credentials of a connected
// peer and resolves them from a Unix domain socket.
//
// Every connection to the broker socket carries exactly one Identity,
// resolved once at accept time from the kernel's SO_PEERCRED and
// SO_PEERSEC socket options. A connection whose credentials cannot be
// resolved is closed before any broker operation runs — the broker
// never sees an identity-less request.
//
// Two identification schemes coexist for policy purposes: the numeric
// uid scheme and the legacy LSM security-context scheme. An Identity
// always carries the numeric fields; the security context is present
// only when the kernel reports one. Policy-side matching against
// either scheme lives in package policy.
package identity
