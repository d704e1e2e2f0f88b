// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/switchboard-dev/switchboard/lib/broker"
	"github.com/switchboard-dev/switchboard/lib/codec"
	"github.com/switchboard-dev/switchboard/lib/identity"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// firstRecordTimeout is how long a freshly-accepted connection may
// take to declare its role. A well-behaved client sends its first
// record immediately after connecting.
const firstRecordTimeout = 30 * time.Second

// writeTimeout bounds every record write. A peer that cannot drain a
// single small record within this window is broken; the write fails
// and the connection is torn down rather than stalling the broker.
const writeTimeout = 10 * time.Second

// Server serves the broker protocol on a Unix seqpacket socket.
type Server struct {
	socketPath string
	registry   *broker.Registry
	logger     *slog.Logger

	// activeConnections tracks in-flight connection handlers so
	// Serve can drain them before returning.
	activeConnections sync.WaitGroup
}

// New creates a server that will listen on socketPath and dispatch
// into the given registry.
func New(socketPath string, registry *broker.Registry, logger *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		registry:   registry,
		logger:     logger,
	}
}

// Serve listens on the broker socket and handles connections until
// ctx is cancelled, then closes every connection and waits for the
// handlers to finish. Any stale socket file at the configured path is
// removed before listening; the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.ListenUnix("unixpacket", &net.UnixAddr{Name: s.socketPath, Net: "unixpacket"})
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// World-connectable: access control happens per operation via
	// peer credentials and the loaded policy, not via socket
	// permissions.
	if err := os.Chmod(s.socketPath, 0o666); err != nil {
		return fmt.Errorf("setting socket permissions: %w", err)
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("broker listening", "path", s.socketPath)

	for {
		conn, err := listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection resolves the peer's identity, reads the role
// record, and runs the connection under that role until it ends.
func (s *Server) handleConnection(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()

	// Closing the connection on shutdown unblocks whichever read
	// the handler is parked in.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	id, err := identity.FromConn(conn)
	if err != nil {
		// Fatal to this one connection: the broker never processes
		// an identity-less request.
		s.logger.Warn("dropping connection with unresolvable peer credentials", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(firstRecordTimeout))
	data, fds, err := wire.ReadRecord(conn)
	if err != nil {
		closeAll(fds)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var request wire.Request
	if err := codec.Unmarshal(data, &request); err != nil {
		closeAll(fds)
		writeResponse(conn, s.logger, wire.Response{
			OK:    false,
			Code:  wire.ReasonUnexpectedOsError,
			Error: fmt.Sprintf("invalid request record: %v", err),
		})
		return
	}

	switch request.Action {
	case wire.ActionRegister:
		closeAll(fds)
		s.handleRegister(conn, id, request)
	case wire.ActionRequest:
		s.handleRequest(conn, id, request, fds)
	case wire.ActionQuery:
		closeAll(fds)
		s.handleQuery(conn, id, request)
	case wire.ActionObserve:
		closeAll(fds)
		s.handleObserve(conn, id)
	default:
		closeAll(fds)
		writeResponse(conn, s.logger, wire.Response{
			OK:    false,
			Code:  wire.ReasonUnexpectedOsError,
			Error: fmt.Sprintf("unknown action %q", request.Action),
		})
	}
}

// handleRegister turns the connection into the provider channel for
// the named service. The connection stays open for the lifetime of
// the registration; EOF from the provider unregisters the service.
func (s *Server) handleRegister(conn *net.UnixConn, id identity.Identity, request wire.Request) {
	pc := &providerConn{conn: conn, logger: s.logger}

	if err := s.registry.Register(id, request.Service, pc); err != nil {
		// The registry already closed the handle with the reason.
		return
	}

	// Providers send nothing after the role record. Wait for EOF —
	// anything else is a protocol violation and tears the
	// registration down the same way.
	for {
		data, fds, err := wire.ReadRecord(conn)
		if err != nil {
			break
		}
		closeAll(fds)
		if len(data) > 0 {
			s.logger.Warn("unexpected record on provider channel, unregistering",
				"service", request.Service, "provider", id.String())
			break
		}
	}
	s.registry.Unregister(request.Service, pc)
}

// handleRequest submits a connection request carrying one forwarded
// endpoint descriptor, then watches the connection so a caller that
// gives up while queued releases its slot.
func (s *Server) handleRequest(conn *net.UnixConn, id identity.Identity, request wire.Request, fds []int) {
	if len(fds) != 1 {
		closeAll(fds)
		writeResponse(conn, s.logger, wire.Response{
			OK:    false,
			Code:  wire.ReasonUnexpectedOsError,
			Error: fmt.Sprintf("request must carry exactly one endpoint descriptor, got %d", len(fds)),
		})
		return
	}

	rc := newRequesterConn(conn, fds[0], s.logger)

	var timeout time.Duration
	if request.TimeoutMillis != nil {
		timeout = time.Duration(*request.TimeoutMillis) * time.Millisecond
	}

	if err := s.registry.Request(id, request.Service, timeout, rc); err != nil {
		return
	}

	// Block until the caller hangs up (or the outcome path closes
	// the connection under us).
	for {
		_, extra, err := wire.ReadRecord(conn)
		closeAll(extra)
		if err != nil {
			break
		}
	}

	// If the request was still queued, we still own the endpoint.
	if s.registry.Cancel(request.Service, rc) {
		rc.abandon()
	}
}

// handleQuery answers one read-only state query and closes.
func (s *Server) handleQuery(conn *net.UnixConn, id identity.Identity, request wire.Request) {
	state, err := s.registry.Query(id, request.Service)
	if err != nil {
		var brokerErr *broker.Error
		if !errors.As(err, &brokerErr) {
			brokerErr = &broker.Error{Reason: wire.ReasonUnexpectedOsError, Message: err.Error()}
		}
		writeResponse(conn, s.logger, wire.Response{
			OK:    false,
			Code:  brokerErr.Reason,
			Error: brokerErr.Message,
		})
		return
	}
	writeResponse(conn, s.logger, wire.Response{OK: true, State: &state})
}

// handleObserve subscribes the connection to lifecycle events until
// the peer hangs up.
func (s *Server) handleObserve(conn *net.UnixConn, id identity.Identity) {
	oc := newObserverConn(conn, s.logger)
	writeResponse(conn, s.logger, wire.Response{OK: true})

	s.registry.AddObserver(id, oc)
	go oc.writeLoop()

	for {
		_, fds, err := wire.ReadRecord(conn)
		closeAll(fds)
		if err != nil {
			break
		}
	}

	s.registry.RemoveObserver(oc)
	oc.shutdown()
}

// writeResponse sends one response record with the standard write
// deadline. Failures are logged at debug level — the connection is
// ending either way.
func writeResponse(conn *net.UnixConn, logger *slog.Logger, response wire.Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := wire.WriteRecord(conn, response); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

func closeAll(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
