// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"

	"github.com/switchboard-dev/switchboard/lib/wire"
)

// Error is a refused broker operation. The same reason and message
// are sent to the peer on the refused handle; the error value exists
// so transports and tests can observe the outcome directly.
type Error struct {
	Reason  wire.Reason
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}
