// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	"github.com/switchboard-dev/switchboard/lib/identity"
)

// subjectKind discriminates the two identification schemes.
type subjectKind uint8

const (
	subjectUID subjectKind = iota + 1
	subjectContext
)

// Subject identifies a policy principal under exactly one of the two
// identification schemes: a numeric uid, or a legacy security-context
// string. The zero Subject identifies nobody.
//
// Subject is comparable and usable as a map key.
type Subject struct {
	kind    subjectKind
	uid     uint32
	context string
}

// UID returns a Subject identified by a numeric user ID.
func UID(uid uint32) Subject {
	return Subject{kind: subjectUID, uid: uid}
}

// SecurityContext returns a Subject identified by a legacy security
// context. The caller is responsible for validating the context with
// ValidateSecurityContext before building policy from it.
func SecurityContext(context string) Subject {
	return Subject{kind: subjectContext, context: context}
}

// IsZero reports whether the Subject identifies nobody.
func (s Subject) IsZero() bool {
	return s.kind == 0
}

// Matches reports whether the given peer identity is the principal
// this Subject names, under the Subject's own scheme. A uid Subject
// compares uids; a context Subject compares security contexts. A peer
// with no security context never matches a context Subject.
func (s Subject) Matches(id identity.Identity) bool {
	switch s.kind {
	case subjectUID:
		return s.uid == id.UID
	case subjectContext:
		return id.SecurityContext != "" && s.context == id.SecurityContext
	default:
		return false
	}
}

// String renders the Subject for log output and error messages.
func (s Subject) String() string {
	switch s.kind {
	case subjectUID:
		return fmt.Sprintf("uid:%d", s.uid)
	case subjectContext:
		return "context:" + s.context
	default:
		return "<none>"
	}
}
