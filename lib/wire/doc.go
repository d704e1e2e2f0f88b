// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the broker socket protocol shared by the
// daemon and its clients, so the record types are defined once rather
// than mirrored.
//
// The broker listens on a Unix SOCK_SEQPACKET socket. Each packet is
// exactly one CBOR record; file descriptors ride alongside a record
// as SCM_RIGHTS ancillary data. A connection plays exactly one role,
// declared by the action field of its first record:
//
//   - register: the connection becomes the provider channel for the
//     named service. The broker answers with a Response, then pushes
//     one Incoming record (with the forwarded descriptor attached)
//     per delivered request. Provider EOF unregisters the service.
//   - request: the record carries one half of a socketpair as its
//     forwarded descriptor. The broker answers with a Response when
//     the request is delivered or refused; a refusal closes the
//     forwarded descriptor. Client EOF before the outcome abandons
//     the pending request.
//   - query: one Response and the connection closes.
//   - observe: the broker answers with a Response, then pushes an
//     Event record for every service lifecycle transition the caller
//     is authorized to see.
//
// Refusals are carried as numeric Reason codes plus a human-readable
// message, mirroring the close-with-reason contract of the broker
// operations themselves.
package wire
