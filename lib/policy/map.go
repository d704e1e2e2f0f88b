// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
)

// Map holds the merged access rules for every known service, keyed by
// service name. After daemon startup it is read-only and freely shared.
type Map map[string]*ServicePolicy

// Ensure returns the policy for name, creating an empty one if the
// Map has no entry yet.
func (m Map) Ensure(name string) *ServicePolicy {
	p, ok := m[name]
	if !ok {
		p = NewServicePolicy()
		m[name] = p
	}
	return p
}

// MergeMaps merges every service policy in from into to. Each key is
// attempted even when an earlier key fails — a duplicate ownership
// conflict on one service never blocks another service's grants from
// merging. The returned error aggregates every per-service failure.
func MergeMaps(from, to Map) error {
	var errs []error
	for name, p := range from {
		if err := to.Ensure(name).Merge(p); err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
