// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/switchboard-dev/switchboard/lib/broker"
	"github.com/switchboard-dev/switchboard/lib/client"
	"github.com/switchboard-dev/switchboard/lib/clock"
	"github.com/switchboard-dev/switchboard/lib/policy"
	"github.com/switchboard-dev/switchboard/lib/server"
	"github.com/switchboard-dev/switchboard/lib/testutil"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// startBroker runs a broker over a real unix socket. The test process
// is declared owner and requester of EchoService, and requester of
// LockedService which is owned by an unreachable uid.
func startBroker(t *testing.T) *client.Client {
	t.Helper()

	self := policy.UID(uint32(os.Getuid()))
	policies := make(policy.Map)
	if err := policies.Ensure("EchoService").SetOwner(self); err != nil {
		t.Fatalf("declaring owner: %v", err)
	}
	policies.Ensure("EchoService").AddRequester(self)
	if err := policies.Ensure("LockedService").SetOwner(policy.UID(0xfffffffe)); err != nil {
		t.Fatalf("declaring owner: %v", err)
	}
	policies.Ensure("LockedService").AddRequester(self)
	policies.Ensure("SecretService")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := broker.NewRegistry(policies, broker.Options{
		Clock:  clock.Real(),
		Logger: logger,
	})

	socketPath := filepath.Join(testutil.SocketDir(t), "broker.sock")
	srv := server.New(socketPath, registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "server shutdown")
	})

	// Wait for the socket to appear before handing out the client.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("broker socket never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return client.New(socketPath)
}

func requireCallReason(t *testing.T, err error, want wire.Reason) {
	t.Helper()
	var callErr *client.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error %v is not a *client.CallError", err)
	}
	if callErr.Reason != want {
		t.Fatalf("reason = %v, want %v", callErr.Reason, want)
	}
}

// echo serves one accepted connection, copying bytes back until EOF.
func echo(t *testing.T, reg *client.Registration, accepted chan<- wire.Peer) {
	t.Helper()
	conn, peer, err := reg.Accept()
	if err != nil {
		return
	}
	accepted <- peer
	defer conn.Close()
	io.Copy(conn, conn)
}

func TestRegisterRequestRoundTrip(t *testing.T) {
	c := startBroker(t)
	ctx := context.Background()

	reg, err := c.Register(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()

	accepted := make(chan wire.Peer, 1)
	go echo(t, reg, accepted)

	conn, err := c.Request(ctx, "EchoService", 0)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	defer conn.Close()

	peer := testutil.RequireReceive(t, accepted, 5*time.Second, "accepted peer")
	if peer.UID != uint32(os.Getuid()) {
		t.Errorf("peer uid = %d, want %d", peer.UID, os.Getuid())
	}

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("writing to service: %v", err)
	}
	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("reading echo: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("echoed %q, want %q", buf[:n], "hello")
	}
}

func TestRequestQueuedUntilRegister(t *testing.T) {
	c := startBroker(t)
	ctx := context.Background()

	type result struct {
		conn net.Conn
		err  error
	}
	results := make(chan result, 1)
	go func() {
		conn, err := c.Request(ctx, "EchoService", 30*time.Second)
		results <- result{conn, err}
	}()

	// Give the request time to queue, then bring up the provider.
	time.Sleep(50 * time.Millisecond)
	reg, err := c.Register(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()

	accepted := make(chan wire.Peer, 1)
	go echo(t, reg, accepted)

	r := testutil.RequireReceive(t, results, 5*time.Second, "queued request outcome")
	if r.err != nil {
		t.Fatalf("queued Request: %v", r.err)
	}
	r.conn.Close()
}

func TestRequestRefusals(t *testing.T) {
	c := startBroker(t)
	ctx := context.Background()

	_, err := c.Request(ctx, "NoSuchService", 0)
	requireCallReason(t, err, wire.ReasonServiceNotFound)

	// SecretService is declared but grants this uid nothing.
	_, err = c.Request(ctx, "SecretService", 0)
	requireCallReason(t, err, wire.ReasonPermissionDenied)
}

func TestRegisterRefusedForForeignOwner(t *testing.T) {
	c := startBroker(t)

	_, err := c.Register(context.Background(), "LockedService")
	requireCallReason(t, err, wire.ReasonPermissionDenied)
}

func TestRequestTimesOut(t *testing.T) {
	c := startBroker(t)

	start := time.Now()
	_, err := c.Request(context.Background(), "LockedService", 100*time.Millisecond)
	requireCallReason(t, err, wire.ReasonTimeout)
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("timed out after %v, before the deadline", elapsed)
	}
}

func TestQuery(t *testing.T) {
	c := startBroker(t)
	ctx := context.Background()

	state, err := c.Query(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if state.Registered {
		t.Error("service reported registered before any provider")
	}

	reg, err := c.Register(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()

	state, err = c.Query(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !state.Registered || state.Owner == nil {
		t.Fatalf("state = %+v, want registered with owner", state)
	}
	if state.Owner.UID != uint32(os.Getuid()) {
		t.Errorf("owner uid = %d, want %d", state.Owner.UID, os.Getuid())
	}

	_, err = c.Query(ctx, "NoSuchService")
	requireCallReason(t, err, wire.ReasonServiceNotFound)
}

func TestObserveSeesLifecycle(t *testing.T) {
	c := startBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Observe(ctx)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}

	reg, err := c.Register(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	event := testutil.RequireReceive(t, events, 5*time.Second, "registered event")
	if event.Type != wire.EventRegistered || event.Service != "EchoService" {
		t.Fatalf("event = %+v, want EchoService registered", event)
	}

	reg.Close()
	event = testutil.RequireReceive(t, events, 5*time.Second, "unregistered event")
	if event.Type != wire.EventUnregistered || event.Service != "EchoService" {
		t.Fatalf("event = %+v, want EchoService unregistered", event)
	}
}

func TestProviderDisconnectFreesName(t *testing.T) {
	c := startBroker(t)
	ctx := context.Background()

	reg, err := c.Register(ctx, "EchoService")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The broker notices the disconnect asynchronously; re-register
	// retries until the name frees up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		next, err := c.Register(ctx, "EchoService")
		if err == nil {
			next.Close()
			return
		}
		var callErr *client.CallError
		if !errors.As(err, &callErr) || callErr.Reason != wire.ReasonServiceAlreadyRegistered {
			t.Fatalf("re-Register: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("name never freed after provider disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
