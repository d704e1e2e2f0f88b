// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/switchboard-dev/switchboard/lib/codec"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// Registration is a live service registration. The underlying
// connection doubles as the provider channel: each forwarded request
// arrives as an Accept result, and closing the Registration (or the
// provider process exiting) unregisters the service and notifies
// observers.
type Registration struct {
	conn    *net.UnixConn
	service string
}

// Register publishes the caller as the provider of the named service.
// ctx covers only the registration handshake; the returned
// Registration lives until Close. On refusal the error is a
// *CallError with the broker's reason.
func (c *Client) Register(ctx context.Context, service string) (*Registration, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := wire.WriteRecord(conn, wire.Request{Action: wire.ActionRegister, Service: service}); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := readResponse(conn); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("registering service %q: %w", service, err)
	}

	return &Registration{conn: conn, service: service}, nil
}

// Service returns the registered service name.
func (r *Registration) Service() string {
	return r.service
}

// Accept blocks until the broker forwards the next requester
// connection, and returns it along with the requester's resolved
// identity. Returns an error once the Registration is closed or the
// broker goes away.
func (r *Registration) Accept() (net.Conn, wire.Peer, error) {
	data, fds, err := wire.ReadRecord(r.conn)
	if err != nil {
		return nil, wire.Peer{}, fmt.Errorf("provider channel for %q closed: %w", r.service, err)
	}

	var incoming wire.Incoming
	if err := codec.Unmarshal(data, &incoming); err != nil {
		closeAll(fds)
		return nil, wire.Peer{}, fmt.Errorf("decoding incoming record: %w", err)
	}
	if len(fds) != 1 {
		closeAll(fds)
		return nil, wire.Peer{}, fmt.Errorf("incoming record carried %d descriptors, want 1", len(fds))
	}

	file := os.NewFile(uintptr(fds[0]), "requester-endpoint")
	conn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return nil, wire.Peer{}, fmt.Errorf("wrapping requester endpoint: %w", err)
	}
	return conn, incoming.Requester, nil
}

// Close unregisters the service. Observers see an unregistered event
// and queued requesters keep waiting for the next provider.
func (r *Registration) Close() error {
	return r.conn.Close()
}
