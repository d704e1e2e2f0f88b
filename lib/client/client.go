// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/switchboard-dev/switchboard/lib/codec"
	"github.com/switchboard-dev/switchboard/lib/wire"
)

// CallError is a broker refusal: the operation was received and
// answered with a reason code rather than failing in transport.
type CallError struct {
	Reason  wire.Reason
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Client connects to a broker socket. The zero-cost struct carries
// only the path; every operation opens its own connection, matching
// the protocol's one-role-per-connection model.
type Client struct {
	socketPath string
}

// New creates a client for the broker at socketPath.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Request asks the broker for a connection to the named service and
// blocks until the broker reports the outcome: the returned net.Conn
// is connected to the provider, or a *CallError carries the refusal.
//
// A zero timeout waits until a provider registers (bounded only by
// ctx); a positive timeout asks the broker to expire the request
// after that long in the queue. Cancelling ctx while queued abandons
// the request.
func (c *Client) Request(ctx context.Context, service string, timeout time.Duration) (net.Conn, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// One half of the socketpair goes to the broker (and onward to
	// the provider); the other half becomes the caller's connection.
	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("creating endpoint pair: %w", err)
	}
	local := os.NewFile(uintptr(pair[0]), "service-endpoint")
	defer local.Close()

	request := wire.Request{Action: wire.ActionRequest, Service: service}
	if timeout > 0 {
		millis := timeout.Milliseconds()
		request.TimeoutMillis = &millis
	}

	err = wire.WriteRecord(conn, request, pair[1])
	unix.Close(pair[1])
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := readResponse(conn); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("requesting service %q: %w", service, err)
	}

	serviceConn, err := net.FileConn(local)
	if err != nil {
		return nil, fmt.Errorf("wrapping service endpoint: %w", err)
	}
	return serviceConn, nil
}

// Query returns the registration state of the named service without
// queuing or side effects.
func (c *Client) Query(ctx context.Context, service string) (*wire.ServiceState, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := wire.WriteRecord(conn, wire.Request{Action: wire.ActionQuery, Service: service}); err != nil {
		return nil, err
	}
	response, err := readResponse(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("querying service %q: %w", service, err)
	}
	if response.State == nil {
		return nil, fmt.Errorf("querying service %q: response carried no state", service)
	}
	return response.State, nil
}

// Observe subscribes to service lifecycle events. The returned
// channel carries every event the caller is authorized to see and is
// closed when ctx is cancelled or the broker goes away.
func (c *Client) Observe(ctx context.Context) (<-chan wire.Event, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })

	if err := wire.WriteRecord(conn, wire.Request{Action: wire.ActionObserve}); err != nil {
		stop()
		conn.Close()
		return nil, err
	}
	if _, err := readResponse(conn); err != nil {
		stop()
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("subscribing to events: %w", err)
	}

	events := make(chan wire.Event)
	go func() {
		defer close(events)
		defer stop()
		defer conn.Close()
		for {
			data, fds, err := wire.ReadRecord(conn)
			closeAll(fds)
			if err != nil {
				return
			}
			var event wire.Event
			if err := codec.Unmarshal(data, &event); err != nil {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// dial opens one seqpacket connection to the broker.
func (c *Client) dial(ctx context.Context) (*net.UnixConn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unixpacket", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing broker socket %s: %w", c.socketPath, err)
	}
	return conn.(*net.UnixConn), nil
}

// readResponse reads one Response record, converting a refusal into
// *CallError.
func readResponse(conn *net.UnixConn) (*wire.Response, error) {
	data, fds, err := wire.ReadRecord(conn)
	closeAll(fds)
	if err != nil {
		return nil, err
	}
	var response wire.Response
	if err := codec.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if !response.OK {
		return nil, &CallError{Reason: response.Code, Message: response.Error}
	}
	return &response, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
