// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the Go client for the broker socket. Providers
// call Register and accept forwarded connections; requesters call
// Request and get a net.Conn to the provider; anyone with a request
// grant can Query a service's state or Observe lifecycle events.
//
// Refusals surface as *CallError carrying the broker's numeric reason
// code, so callers can distinguish a missing service from a denied
// one without string matching.
package client
