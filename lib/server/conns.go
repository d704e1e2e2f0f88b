// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/switchboard-dev/switchboard/lib/broker"
	"github.com/switchboard-dev/switchboard/lib/identity"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// providerConn backs broker.Provider with the provider's own
// connection: refusals and incoming-request records go back down the
// same socket the register record came up.
type providerConn struct {
	conn   *net.UnixConn
	logger *slog.Logger

	// writeMu serializes record writes. Registered and Deliver are
	// already serialized by the registry lock, but CloseWithReason
	// shares the socket with neither.
	writeMu sync.Mutex
}

func (p *providerConn) Registered(service string) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wire.WriteRecord(p.conn, wire.Response{OK: true}); err != nil {
		p.logger.Debug("failed to acknowledge registration", "service", service, "error", err)
	}
}

func (p *providerConn) Deliver(requester identity.Identity, dest broker.Requester) error {
	rc, ok := dest.(*requesterConn)
	if !ok {
		return fmt.Errorf("destination handle is %T, not a socket endpoint", dest)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	record := wire.Incoming{Requester: wire.PeerFromIdentity(requester)}
	if err := wire.WriteRecord(p.conn, record, int(rc.endpoint.Fd())); err != nil {
		return fmt.Errorf("forwarding endpoint to provider: %w", err)
	}

	// The kernel now holds the provider's copy of the descriptor;
	// release ours.
	rc.endpoint.Close()
	return nil
}

func (p *providerConn) CloseWithReason(reason wire.Reason, message string) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wire.WriteRecord(p.conn, wire.Response{OK: false, Code: reason, Error: message}); err != nil {
		p.logger.Debug("failed to write registration refusal", "error", err)
	}
	p.conn.Close()
}

// requesterConn backs broker.Requester: the forwarded endpoint
// descriptor plus the control connection the outcome is reported on.
// Exactly one of Delivered, CloseWithReason, and abandon finalizes
// the handle.
type requesterConn struct {
	conn     *net.UnixConn
	endpoint *os.File
	logger   *slog.Logger
	finalize sync.Once
}

func newRequesterConn(conn *net.UnixConn, endpointFD int, logger *slog.Logger) *requesterConn {
	return &requesterConn{
		conn:     conn,
		endpoint: os.NewFile(uintptr(endpointFD), "forwarded-endpoint"),
		logger:   logger,
	}
}

func (rc *requesterConn) Delivered() {
	rc.finalize.Do(func() {
		// The endpoint was already handed off by Deliver; only the
		// outcome report remains.
		rc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := wire.WriteRecord(rc.conn, wire.Response{OK: true}); err != nil {
			rc.logger.Debug("failed to write delivery confirmation", "error", err)
		}
		rc.conn.Close()
	})
}

func (rc *requesterConn) CloseWithReason(reason wire.Reason, message string) {
	rc.finalize.Do(func() {
		rc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := wire.WriteRecord(rc.conn, wire.Response{OK: false, Code: reason, Error: message}); err != nil {
			rc.logger.Debug("failed to write request refusal", "error", err)
		}
		rc.endpoint.Close()
		rc.conn.Close()
	})
}

// abandon releases a request whose caller hung up while it was still
// queued. Only called after Registry.Cancel confirms the endpoint was
// never handed off.
func (rc *requesterConn) abandon() {
	rc.finalize.Do(func() {
		rc.endpoint.Close()
		rc.conn.Close()
	})
}

// observerEventBuffer is how many undelivered events an observer may
// accumulate before the fan-out starts dropping. Notify runs under
// the registry lock, so it must never wait on a slow peer.
const observerEventBuffer = 64

// observerConn backs broker.Observer with a buffered channel drained
// by a dedicated writer goroutine.
type observerConn struct {
	conn   *net.UnixConn
	logger *slog.Logger
	events chan wire.Event
	done   chan struct{}
	once   sync.Once
}

func newObserverConn(conn *net.UnixConn, logger *slog.Logger) *observerConn {
	return &observerConn{
		conn:   conn,
		logger: logger,
		events: make(chan wire.Event, observerEventBuffer),
		done:   make(chan struct{}),
	}
}

func (o *observerConn) Notify(event wire.Event) {
	select {
	case o.events <- event:
	default:
		o.logger.Warn("observer too slow, dropping event",
			"service", event.Service, "type", string(event.Type))
	}
}

// writeLoop drains the event buffer onto the connection until
// shutdown or a write failure.
func (o *observerConn) writeLoop() {
	for {
		select {
		case event := <-o.events:
			o.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := wire.WriteRecord(o.conn, event); err != nil {
				o.logger.Debug("failed to push event, closing observer", "error", err)
				o.conn.Close()
				return
			}
		case <-o.done:
			return
		}
	}
}

func (o *observerConn) shutdown() {
	o.once.Do(func() {
		close(o.done)
		o.conn.Close()
	})
}
