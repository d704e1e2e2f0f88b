// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
policy_dirs:
  - /etc/switchboard/policies
`)
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.SocketPath != defaultSocketPath {
		t.Errorf("socket_path = %q, want default %q", config.SocketPath, defaultSocketPath)
	}
	if config.LogLevel != "info" {
		t.Errorf("log_level = %q, want info", config.LogLevel)
	}
	if config.Permissive || config.AllowAdHocServices {
		t.Error("enforcement flags should default off")
	}
	if config.MaxPendingRequests != 0 {
		t.Errorf("max_pending_requests = %d, want 0", config.MaxPendingRequests)
	}
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
socket_path: /tmp/test-broker.sock
policy_dirs:
  - /usr/share/switchboard/policies
  - /etc/switchboard/policies
extra_policy_dir: /var/lib/switchboard/dev-policies
permissive: true
allow_ad_hoc_services: true
max_pending_requests: 32
metrics_address: 127.0.0.1:9323
log_level: debug
`)
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.SocketPath != "/tmp/test-broker.sock" {
		t.Errorf("socket_path = %q", config.SocketPath)
	}
	if len(config.PolicyDirs) != 2 {
		t.Errorf("policy_dirs = %v, want 2 entries", config.PolicyDirs)
	}
	if config.MaxPendingRequests != 32 {
		t.Errorf("max_pending_requests = %d, want 32", config.MaxPendingRequests)
	}
	level, err := config.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel = %v (%v), want debug", level, err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no policy dirs while enforcing",
			content: `socket_path: /tmp/b.sock`,
			want:    "policy_dirs",
		},
		{
			name: "ad hoc without permissive",
			content: `
policy_dirs: [/etc/switchboard/policies]
allow_ad_hoc_services: true
`,
			want: "permissive",
		},
		{
			name: "negative queue cap",
			content: `
policy_dirs: [/etc/switchboard/policies]
max_pending_requests: -1
`,
			want: "max_pending_requests",
		},
		{
			name: "unknown log level",
			content: `
policy_dirs: [/etc/switchboard/policies]
log_level: loud
`,
			want: "log_level",
		},
		{
			name: "empty socket path",
			content: `
socket_path: ""
policy_dirs: [/etc/switchboard/policies]
`,
			want: "socket_path",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestPermissiveNeedsNoPolicyDirs(t *testing.T) {
	path := writeConfig(t, `permissive: true`)
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing config accepted")
	}
}
