// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// documentEntry is the on-disk shape of one policy document entry.
// Exactly one of User and Identity must be set. Any key outside this
// struct is a hard parse error for the whole document.
type documentEntry struct {
	// User is a system account name resolved to a uid at load time.
	User string `json:"user"`

	// Identity is a legacy security-context literal.
	Identity string `json:"identity"`

	// Own lists services this principal provides.
	Own []string `json:"own"`

	// Request lists services this principal may connect to.
	Request []string `json:"request"`
}

// Parse parses one policy document into a fresh Map. The input is
// JSONC: JSON extended with // line comments, /* block comments */,
// and trailing commas.
//
// Any failure — malformed JSON, an unknown key, an entry with neither
// or both principal fields, an invalid name or context, an account
// that does not resolve, or the same service owned by two entries —
// fails the whole document. No partial result is returned; partial
// tolerance applies at the directory level, not within a file.
func (l *Loader) Parse(data []byte) (Map, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var entries []documentEntry
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing policy document: %w", err)
	}

	m := make(Map)
	for i, entry := range entries {
		subject, err := l.resolveSubject(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}

		for _, name := range entry.Own {
			if err := ValidateServiceName(name); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			if err := m.Ensure(name).SetOwner(subject); err != nil {
				return nil, fmt.Errorf("entry %d: service %q: %w", i, name, err)
			}
		}
		for _, name := range entry.Request {
			if err := ValidateServiceName(name); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			m.Ensure(name).AddRequester(subject)
		}
	}
	return m, nil
}

// resolveSubject turns an entry's principal fields into a Subject,
// enforcing the exactly-one-of-user-and-identity contract.
func (l *Loader) resolveSubject(entry documentEntry) (Subject, error) {
	switch {
	case entry.User != "" && entry.Identity != "":
		return Subject{}, fmt.Errorf("entry sets both \"user\" and \"identity\"")
	case entry.User != "":
		uid, err := l.resolver.ResolveUID(entry.User)
		if err != nil {
			return Subject{}, err
		}
		return UID(uid), nil
	case entry.Identity != "":
		if err := ValidateSecurityContext(entry.Identity); err != nil {
			return Subject{}, err
		}
		return SecurityContext(entry.Identity), nil
	default:
		return Subject{}, fmt.Errorf("entry sets neither \"user\" nor \"identity\"")
	}
}
