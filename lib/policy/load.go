// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Loader parses policy documents and merges them into a Map. The
// resolver is injected so tests never touch the host account
// database.
type Loader struct {
	resolver UserResolver
	logger   *slog.Logger
}

// NewLoader creates a Loader. Pass SystemResolver() outside of tests.
func NewLoader(resolver UserResolver, logger *slog.Logger) *Loader {
	return &Loader{resolver: resolver, logger: logger}
}

// LoadFile reads and parses a single policy document.
func (l *Loader) LoadFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// LoadDirectory parses every regular file directly under dir (no
// recursion) and merges the results into the given Map.
//
// A file that fails to parse is skipped with a warning and loading
// continues; a merge conflict is logged the same way. The returned
// error aggregates every failure, but regardless of it the Map holds
// everything that did parse and merge — one broken document must not
// take down the services declared by its neighbors.
func (l *Loader) LoadDirectory(dir string, into Map) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading policy directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		m, err := l.LoadFile(path)
		if err != nil {
			l.logger.Warn("skipping unparsable policy file", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := MergeMaps(m, into); err != nil {
			l.logger.Warn("policy merge conflict", "path", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// LoadDirectories loads an ordered list of policy directories into the
// Map with LoadDirectory semantics per directory. Later directories
// merge on top of earlier ones — the usual arrangement is the base
// policy directory followed by a developer-mode override directory.
func (l *Loader) LoadDirectories(dirs []string, into Map) error {
	var errs []error
	for _, dir := range dirs {
		if err := l.LoadDirectory(dir, into); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}
