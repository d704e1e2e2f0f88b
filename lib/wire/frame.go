// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"

	"github.com/switchboard-dev/switchboard/lib/codec"
)

// MaxRecordSize bounds a single protocol record. Policy names and
// identities are small; anything near this limit is a broken or
// hostile peer.
const MaxRecordSize = 64 * 1024

// maxRecordFDs is the most descriptors a single record may carry.
// The protocol only ever attaches one, but the read path tolerates
// (and closes) extras rather than leaking them.
const maxRecordFDs = 4

// WriteRecord encodes v as one CBOR record and sends it as a single
// seqpacket, attaching any file descriptors as SCM_RIGHTS ancillary
// data. The descriptors themselves are not closed; the caller keeps
// ownership of its copies.
func WriteRecord(conn *net.UnixConn, v any, fds ...int) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if len(data) > MaxRecordSize {
		return fmt.Errorf("record of %d bytes exceeds limit %d", len(data), MaxRecordSize)
	}

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	if _, _, err := conn.WriteMsgUnix(data, oob, nil); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// ReadRecord reads one seqpacket record and any file descriptors
// attached to it. The caller owns the returned descriptors and must
// close them. Returns io.EOF when the peer has closed the connection.
func ReadRecord(conn *net.UnixConn) (data []byte, fds []int, err error) {
	buf := make([]byte, MaxRecordSize)
	oob := make([]byte, unix.CmsgSpace(4*maxRecordFDs))

	n, oobn, flags, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 && oobn == 0 {
		return nil, nil, io.EOF
	}

	fds, err = parseRights(oob[:oobn])
	if err != nil {
		return nil, nil, err
	}
	if flags&unix.MSG_TRUNC != 0 || flags&unix.MSG_CTRUNC != 0 {
		closeAll(fds)
		return nil, nil, fmt.Errorf("truncated record (%d bytes read)", n)
	}
	return buf[:n], fds, nil
}

// parseRights extracts SCM_RIGHTS descriptors from ancillary data and
// marks them close-on-exec.
func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	messages, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parsing control messages: %w", err)
	}

	var fds []int
	for _, message := range messages {
		received, err := unix.ParseUnixRights(&message)
		if err != nil {
			// Not SCM_RIGHTS (e.g. SCM_CREDENTIALS); ignore.
			continue
		}
		for _, fd := range received {
			unix.CloseOnExec(fd)
			fds = append(fds, fd)
		}
	}
	return fds, nil
}

func closeAll(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
