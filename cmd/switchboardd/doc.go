// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// switchboardd is the local service broker daemon. It loads the
// declarative access-control policy from one or more directories,
// then serves the broker protocol on a Unix seqpacket socket: local
// processes register named services, request connections to them,
// query their state, and observe lifecycle events, all subject to the
// loaded policy.
package main
