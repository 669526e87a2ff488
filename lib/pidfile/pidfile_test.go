// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "service.pid"))
}

func TestReadWithoutRecord(t *testing.T) {
	t.Parallel()
	registry := newRegistry(t)

	pid, ok, err := registry.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok || pid != 0 {
		t.Errorf("Read() = (%d, %v), want (0, false)", pid, ok)
	}
}

func TestRecordThenRead(t *testing.T) {
	t.Parallel()
	registry := newRegistry(t)

	if err := registry.Record(4242); err != nil {
		t.Fatalf("Record: %v", err)
	}
	pid, ok, err := registry.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !ok || pid != 4242 {
		t.Errorf("Read() = (%d, %v), want (4242, true)", pid, ok)
	}

	data, err := os.ReadFile(registry.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "4242\n" {
		t.Errorf("marker content = %q, want %q", data, "4242\n")
	}
}

func TestRecordOverwrites(t *testing.T) {
	t.Parallel()
	registry := newRegistry(t)

	for _, pid := range []int{100, 200} {
		if err := registry.Record(pid); err != nil {
			t.Fatalf("Record(%d): %v", pid, err)
		}
	}
	pid, _, err := registry.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != 200 {
		t.Errorf("Read() pid = %d, want 200", pid)
	}
}

func TestRecordLeavesNoTemporaryFile(t *testing.T) {
	t.Parallel()
	registry := newRegistry(t)

	if err := registry.Record(7); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := os.Stat(registry.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary marker still present after Record (stat err = %v)", err)
	}
}

func TestRecordRejectsNonPositive(t *testing.T) {
	t.Parallel()
	registry := newRegistry(t)

	for _, pid := range []int{0, -1} {
		if err := registry.Record(pid); err == nil {
			t.Errorf("Record(%d) succeeded, want error", pid)
		}
	}
	if _, ok, _ := registry.Read(); ok {
		t.Error("a rejected Record left a marker behind")
	}
}

func TestClearIsIdempotent(t *testing.T) {
	t.Parallel()
	registry := newRegistry(t)

	if err := registry.Clear(); err != nil {
		t.Fatalf("Clear on empty registry: %v", err)
	}
	if err := registry.Record(31337); err != nil {
		t.Fatalf("Record: %v", err)
	}
	for i := range 2 {
		if err := registry.Clear(); err != nil {
			t.Fatalf("Clear #%d: %v", i+1, err)
		}
	}
	if _, ok, err := registry.Read(); ok || err != nil {
		t.Errorf("Read after Clear = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestReadCorruptMarker(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "not-a-pid\n", "-5\n", "12 34\n"} {
		registry := newRegistry(t)
		if err := os.WriteFile(registry.Path(), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		_, ok, err := registry.Read()
		if !errors.Is(err, ErrCorruptMarker) {
			t.Errorf("Read(%q) error = %v, want ErrCorruptMarker", content, err)
		}
		if ok {
			t.Errorf("Read(%q) ok = true for a corrupt marker", content)
		}
	}
}
