// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "fmt"

// ValidateServiceName checks that a service name is non-empty and
// strictly alphanumeric. Service names appear in log lines, socket
// protocol records, and policy files; the restrictive charset keeps
// them unambiguous in all three.
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name is empty")
	}
	for _, c := range name {
		if !isAlphanumeric(c) {
			return fmt.Errorf("service name %q: character %q is not alphanumeric", name, c)
		}
	}
	return nil
}

// ValidateSecurityContext checks that a legacy security context is
// non-empty and uses only lowercase alphanumerics, '_', and ':'.
func ValidateSecurityContext(context string) error {
	if context == "" {
		return fmt.Errorf("security context is empty")
	}
	for _, c := range context {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == ':':
		default:
			return fmt.Errorf("security context %q: character %q not allowed", context, c)
		}
	}
	return nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
