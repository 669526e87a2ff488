// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrCorruptMarker is returned by Read when the marker exists but does
// not contain a single positive integer.
var ErrCorruptMarker = errors.New("pidfile: corrupt process marker")

// Registry is the process registry backed by a single marker file.
type Registry struct {
	path string
}

// New returns a Registry using the marker file at path. The parent
// directory must exist before Record is called.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the marker file path.
func (r *Registry) Path() string {
	return r.path
}

// Record atomically replaces the marker with pid.
func (r *Registry) Record(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("pidfile: refusing to record non-positive pid %d", pid)
	}
	data := []byte(strconv.Itoa(pid) + "\n")

	temporaryPath := r.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("pidfile: creating temporary marker: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("pidfile: writing temporary marker: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("pidfile: syncing temporary marker: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("pidfile: closing temporary marker: %w", err)
	}
	if err := os.Rename(temporaryPath, r.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("pidfile: renaming marker into place: %w", err)
	}

	// Make the rename itself durable.
	if directory, err := os.Open(filepath.Dir(r.path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read returns the recorded pid. ok is false (with a nil error) when no
// marker exists.
func (r *Registry) Read() (pid int, ok bool, err error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("pidfile: reading %s: %w", r.path, err)
	}

	text := strings.TrimSpace(string(data))
	pid, err = strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, false, fmt.Errorf("%w: %s contains %q", ErrCorruptMarker, r.path, text)
	}
	return pid, true, nil
}

// Clear removes the marker. Clearing an absent marker is not an error.
func (r *Registry) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("pidfile: removing %s: %w", r.path, err)
	}
	return nil
}
