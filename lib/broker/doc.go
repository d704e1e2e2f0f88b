// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker implements the service registry at the heart of the
// daemon: one entry per known service holding its access policy, its
// current provider, a FIFO of pending connection requests, and the
// observer fan-out for lifecycle events.
//
// The registry is transport-agnostic. Connections appear as Provider,
// Requester, and Observer handles; the transport (lib/server) backs
// them with socket connections and forwarded descriptors, tests back
// them with in-memory fakes.
//
// Every public operation — Register, Request, Query, observer
// changes, deadline expiry, provider disconnect — runs to completion
// under a single mutex, so no operation ever observes another half
// applied. Lifecycle events are broadcast synchronously as part of
// the transition that caused them, which is what guarantees observers
// never see transitions out of order. Nothing in the registry blocks:
// waiting for a provider is queued state, and the eventual answer is
// a delivery or a close-with-reason on the handle.
package broker
