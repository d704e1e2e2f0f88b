// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/switchboard-dev/switchboard/lib/identity"
)

// tableResolver resolves usernames from a fixed table, so no test
// ever touches the host account database.
type tableResolver map[string]uint32

func (r tableResolver) ResolveUID(username string) (uint32, error) {
	uid, ok := r[username]
	if !ok {
		return 0, fmt.Errorf("unknown user %q", username)
	}
	return uid, nil
}

func testLoader() *Loader {
	resolver := tableResolver{
		"healthd": 20101,
		"probe":   20102,
	}
	return NewLoader(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseDocument(t *testing.T) {
	document := `
// Broker policy for the diagnostics stack.
[
  {
    "user": "healthd",
    "own": ["DiagnosticsService"],
    "request": ["SensorService"],   // trailing commas are fine
  },
  {
    "identity": "u:r:sensors:s0",
    "own": ["SensorService"],
  },
]`
	m, err := testLoader().Parse([]byte(document))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	healthd := identity.Identity{UID: 20101}
	if !m["DiagnosticsService"].IsOwner(healthd) {
		t.Error("healthd should own DiagnosticsService")
	}
	if !m["SensorService"].IsRequester(healthd) {
		t.Error("healthd should be a requester of SensorService")
	}
	sensors := identity.Identity{UID: 7, SecurityContext: "u:r:sensors:s0"}
	if !m["SensorService"].IsOwner(sensors) {
		t.Error("legacy context should own SensorService")
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name     string
		document string
	}{
		{"unknown key", `[{"user": "healthd", "owns": ["FooService"]}]`},
		{"both principals", `[{"user": "healthd", "identity": "u:r:x:s0", "own": ["FooService"]}]`},
		{"no principal", `[{"own": ["FooService"]}]`},
		{"unresolvable user", `[{"user": "nobody_here", "own": ["FooService"]}]`},
		{"invalid service name", `[{"user": "healthd", "own": ["Foo-Service"]}]`},
		{"invalid context", `[{"identity": "Bad Context", "own": ["FooService"]}]`},
		{"duplicate own", `[
			{"user": "healthd", "own": ["FooService"]},
			{"user": "probe", "own": ["FooService"]}
		]`},
		{"malformed json", `[{"user": "healthd"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := testLoader().Parse([]byte(tc.document)); err == nil {
				t.Errorf("Parse accepted %s", tc.name)
			}
		})
	}
}

func TestParseDuplicateOwnKeepsNothing(t *testing.T) {
	// Within one document, a duplicate own fails the whole file —
	// partial tolerance only applies across files.
	document := `[
		{"user": "healthd", "own": ["FooService"], "request": ["BarService"]},
		{"user": "probe", "own": ["FooService"]}
	]`
	if _, err := testLoader().Parse([]byte(document)); err == nil {
		t.Fatal("document with duplicate ownership should fail")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLoadDirectoryPartialSuccess(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "00-good.jsonc", `[{"user": "healthd", "own": ["FooService"]}]`)
	writeFile(t, dir, "10-bad.jsonc", `this is not json`)
	writeFile(t, dir, "20-also-good.jsonc", `[{"user": "probe", "request": ["FooService"]}]`)

	policies := make(Map)
	err := testLoader().LoadDirectory(dir, policies)
	if err == nil {
		t.Fatal("LoadDirectory should report the unparsable file")
	}

	// Both parseable files still merged.
	if !policies["FooService"].IsOwner(identity.Identity{UID: 20101}) {
		t.Error("healthd ownership missing despite bad sibling file")
	}
	if !policies["FooService"].IsRequester(identity.Identity{UID: 20102}) {
		t.Error("probe request grant missing despite bad sibling file")
	}
}

func TestLoadDirectoryCrossFileOwnerConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "00-first.jsonc", `[{"user": "healthd", "own": ["FooService"]}]`)
	writeFile(t, dir, "10-second.jsonc", `[{"user": "probe", "own": ["FooService"], "request": ["FooService"]}]`)

	policies := make(Map)
	err := testLoader().LoadDirectory(dir, policies)
	if err == nil {
		t.Fatal("conflicting ownership across files should be reported")
	}
	if !strings.Contains(err.Error(), "FooService") {
		t.Errorf("error %q does not name the conflicting service", err)
	}

	// First declaration wins; the conflicting file's request grants
	// still apply.
	if !policies["FooService"].IsOwner(identity.Identity{UID: 20101}) {
		t.Error("original owner displaced by conflicting file")
	}
	if !policies["FooService"].IsRequester(identity.Identity{UID: 20102}) {
		t.Error("request grant from conflicting file not applied")
	}
}

func TestLoadDirectoriesOrdered(t *testing.T) {
	base := t.TempDir()
	override := t.TempDir()
	writeFile(t, base, "base.jsonc", `[{"user": "healthd", "own": ["FooService"]}]`)
	writeFile(t, override, "dev.jsonc", `[{"user": "probe", "request": ["FooService"]}]`)

	policies := make(Map)
	if err := testLoader().LoadDirectories([]string{base, override}, policies); err != nil {
		t.Fatalf("LoadDirectories failed: %v", err)
	}
	if !policies["FooService"].IsOwner(identity.Identity{UID: 20101}) {
		t.Error("base ownership missing")
	}
	if !policies["FooService"].IsRequester(identity.Identity{UID: 20102}) {
		t.Error("override request grant missing")
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	policies := make(Map)
	if err := testLoader().LoadDirectory(filepath.Join(t.TempDir(), "absent"), policies); err == nil {
		t.Error("missing directory should be an error")
	}
}
