// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/switchboard-dev/switchboard/lib/identity"
)

// ServicePolicy is the access rule for one named service: at most one
// owner Subject, and a set of requester Subjects. Built once at load
// time and logically immutable afterward — the broker only reads it.
type ServicePolicy struct {
	owner      Subject
	requesters map[Subject]struct{}
}

// NewServicePolicy returns an empty policy with no owner and no
// requesters.
func NewServicePolicy() *ServicePolicy {
	return &ServicePolicy{requesters: make(map[Subject]struct{})}
}

// SetOwner declares the owner of the service. Setting a second owner
// of either scheme is a load-time contract violation: the call fails
// and the existing owner is untouched.
func (p *ServicePolicy) SetOwner(s Subject) error {
	if !p.owner.IsZero() {
		return fmt.Errorf("owner already declared as %s", p.owner)
	}
	p.owner = s
	return nil
}

// Owner returns the declared owner, if any.
func (p *ServicePolicy) Owner() (Subject, bool) {
	return p.owner, !p.owner.IsZero()
}

// AddRequester grants request access to a principal. Idempotent.
func (p *ServicePolicy) AddRequester(s Subject) {
	p.requesters[s] = struct{}{}
}

// IsOwner reports whether the peer identity is the declared owner.
func (p *ServicePolicy) IsOwner(id identity.Identity) bool {
	return p.owner.Matches(id)
}

// IsRequester reports whether the peer identity holds a request grant.
func (p *ServicePolicy) IsRequester(id identity.Identity) bool {
	for s := range p.requesters {
		if s.Matches(id) {
			return true
		}
	}
	return false
}

// Merge folds another policy for the same service into this one. The
// requester sets are unioned unconditionally. If both policies declare
// an owner, Merge returns an error — but only after the union has been
// applied. Partial success, not all-or-nothing: a duplicate ownership
// declaration must not strip anyone's request grants.
func (p *ServicePolicy) Merge(other *ServicePolicy) error {
	for s := range other.requesters {
		p.requesters[s] = struct{}{}
	}

	if other.owner.IsZero() {
		return nil
	}
	if err := p.SetOwner(other.owner); err != nil {
		return fmt.Errorf("conflicting owner %s: %w", other.owner, err)
	}
	return nil
}
