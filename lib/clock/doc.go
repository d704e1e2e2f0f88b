// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time operations the broker needs — Now
// and cancellable one-shot timers — so pending-request deadlines can
// be tested deterministically. Production code injects Real(); tests
// inject Fake() and drive it with Advance.
package clock
