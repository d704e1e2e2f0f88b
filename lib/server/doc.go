// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the broker's transport: it accepts connections on
// the Unix seqpacket socket, resolves each peer's identity from its
// socket credentials, and dispatches the connection into the registry
// under the role declared by its first record (see lib/wire for the
// protocol).
//
// The server owns everything connection-shaped so the registry does
// not have to: descriptor forwarding over SCM_RIGHTS, disconnect
// detection for providers and observers, abandonment of queued
// requests, and the buffered event fan-out that keeps a slow observer
// from stalling the broker. A peer whose credentials cannot be
// resolved is dropped before any registry operation runs.
package server
