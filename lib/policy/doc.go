// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the broker's declarative access-control
// model: per-service ownership and request rules, and the loader that
// builds them from on-disk policy documents.
//
// A policy document is a JSONC file (JSON extended with // comments
// and trailing commas) containing a list of entries. Each entry names
// a principal — either a system account to resolve to a uid, or a
// legacy security-context literal — and the services that principal
// may own or request:
//
//	[
//	  {
//	    "user": "healthd",           // or "identity": "u:r:healthd:s0"
//	    "own": ["DiagnosticsService"],
//	    "request": ["SensorService"],
//	  },
//	]
//
// Documents from one or more directories are parsed independently and
// merged into a single Map at daemon startup. A file that fails to
// parse is skipped with a warning and the rest of the directory still
// loads; a merge conflict on ownership is an error but never blocks
// request grants from applying. After startup the Map is read-only.
//
// Principals are modeled as a single tagged Subject (uid or security
// context) rather than parallel uid- and context-keyed structures, so
// a ServicePolicy can never hold owners of both kinds at once.
package policy
