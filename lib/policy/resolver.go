// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// UserResolver resolves a system account name to a numeric uid. The
// Loader takes a resolver as an explicit dependency so tests can
// substitute a fixed table instead of the host account database.
type UserResolver interface {
	// ResolveUID returns the uid for the named account. An unknown
	// account is an error; the loader treats it as fatal for the
	// whole document being parsed.
	ResolveUID(username string) (uint32, error)
}

// SystemResolver returns a UserResolver backed by the host account
// database (NSS). Lookups interrupted by a signal are retried
// transparently.
func SystemResolver() UserResolver {
	return systemResolver{}
}

type systemResolver struct{}

func (systemResolver) ResolveUID(username string) (uint32, error) {
	for {
		u, err := user.Lookup(username)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return 0, fmt.Errorf("resolving user %q: %w", username, err)
		}
		uid, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("user %q has non-numeric uid %q: %w", username, u.Uid, err)
		}
		return uint32(uid), nil
	}
}
