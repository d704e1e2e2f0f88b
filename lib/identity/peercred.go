// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/sys/unix"
)

// FromConn resolves the peer credentials of a connected Unix domain
// socket. The uid, gid, and pid come from SO_PEERCRED; the security
// context comes from SO_PEERSEC when an LSM is active.
//
// A missing security context is not an error — kernels without an
// active LSM simply have none, and numeric-scheme policies never look
// at it. A failure to read SO_PEERCRED is an error: the caller must
// close the connection rather than proceed without an identity.
func FromConn(conn *net.UnixConn) (Identity, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Identity{}, fmt.Errorf("accessing raw connection: %w", err)
	}

	var (
		cred    *unix.Ucred
		context string
		sockErr error
	)
	controlErr := raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if sockErr != nil {
			return
		}
		// SO_PEERSEC fails with ENOPROTOOPT (or returns an empty
		// label) when no LSM is configured. Either way the identity
		// simply has no security context.
		if label, err := unix.GetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_PEERSEC); err == nil {
			context = strings.TrimRight(label, "\x00")
		}
	})
	if controlErr != nil {
		return Identity{}, fmt.Errorf("reading peer credentials: %w", controlErr)
	}
	if sockErr != nil {
		return Identity{}, fmt.Errorf("reading peer credentials: %w", sockErr)
	}

	return Identity{
		UID:             cred.Uid,
		PID:             uint32(cred.Pid),
		GID:             cred.Gid,
		SecurityContext: context,
	}, nil
}
