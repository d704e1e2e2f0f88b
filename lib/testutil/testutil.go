// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// SocketDir exists because Unix domain sockets have a 108-byte path
// limit (sun_path in sockaddr_un) and t.TempDir() can sit under a
// deeply nested build-system path that exceeds it.
package testutil

import (
	"os"
	"testing"
	"time"
)

// SocketDir creates a short-pathed temporary directory in /tmp
// suitable for Unix socket files, removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "swbd-")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// RequireReceive reads one value from ch within timeout or fails the
// test. This keeps the select-with-timeout safety valve in one place
// instead of scattered through individual tests.
func RequireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while %s", what)
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("timed out after %v %s", timeout, what)
		panic("unreachable")
	}
}
