// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pythonkr/pkdeploy/lib/clock"
	"github.com/pythonkr/pkdeploy/lib/pidfile"
	"github.com/pythonkr/pkdeploy/lib/testutil"
)

func newRealController(t *testing.T) (*Controller, *pidfile.Registry) {
	t.Helper()
	testutil.RequireBinary(t, "sh")
	registry := pidfile.New(filepath.Join(t.TempDir(), "pkdeploy.pid"))
	controller, err := New(Config{
		Registry:     registry,
		Clock:        clock.Real(),
		PollInterval: 10 * time.Millisecond,
		PollAttempts: 500,
	})
	if err != nil {
		t.Fatal(err)
	}
	return controller, registry
}

func stopInstance(t *testing.T, instance Instance) {
	t.Helper()
	if instance.PID <= 0 || instance.exited == nil {
		return
	}
	_ = unix.Kill(-instance.PID, unix.SIGKILL)
	testutil.RequireClosed(t, instance.exited, 5*time.Second, "launched server was not reaped")
}

func TestLaunchRecordsPIDAndRetireStopsIt(t *testing.T) {
	t.Parallel()
	controller, registry := newRealController(t)

	instance, err := controller.Launch(context.Background(), LaunchSpec{Command: "exec sleep 60"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { stopInstance(t, instance) })

	if instance.State != StateRunning {
		t.Errorf("state = %s, want RUNNING", instance.State)
	}
	pid, ok, err := registry.Read()
	if err != nil || !ok || pid != instance.PID {
		t.Fatalf("registry = (%d, %v, %v), want %d", pid, ok, err, instance.PID)
	}

	retirement, err := controller.RetireCurrent(context.Background())
	if err != nil {
		t.Fatalf("RetireCurrent: %v", err)
	}
	if retirement.Outcome != Exited || retirement.PID != instance.PID {
		t.Errorf("retirement = %+v, want %d exited", retirement, instance.PID)
	}
	testutil.RequireClosed(t, instance.exited, 5*time.Second, "retired server still running")
	assertRegistryEmpty(t, registry)
}

func TestRetireStopsChildrenOfNonExecCommand(t *testing.T) {
	t.Parallel()
	controller, registry := newRealController(t)
	childFile := filepath.Join(t.TempDir(), "child.pid")

	instance, err := controller.Launch(context.Background(), LaunchSpec{
		Command: `sleep 60 & echo $! > "$CHILD_PID_FILE"; wait`,
		Env:     []string{"CHILD_PID_FILE=" + childFile},
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { stopInstance(t, instance) })

	var child int
	deadline := time.Now().Add(5 * time.Second)
	for child == 0 {
		data, _ := os.ReadFile(childFile)
		if text := strings.TrimSpace(string(data)); text != "" {
			child, err = strconv.Atoi(text)
			if err != nil {
				t.Fatalf("child pid %q: %v", text, err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("shell never started its child")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() { _ = unix.Kill(child, unix.SIGKILL) })

	retirement, err := controller.RetireCurrent(context.Background())
	if err != nil {
		t.Fatalf("RetireCurrent: %v", err)
	}
	if retirement.Outcome != Exited {
		t.Errorf("retirement = %+v, want exited", retirement)
	}
	table, err := SystemProcesses("")
	if err != nil {
		t.Fatal(err)
	}
	if alive, err := table.Alive(child); err != nil || alive {
		t.Errorf("Alive(child %d) = (%v, %v) after retirement, want false", child, alive, err)
	}
	testutil.RequireClosed(t, instance.exited, 5*time.Second, "retired shell still running")
	assertRegistryEmpty(t, registry)
}

func TestLaunchWritesLogSinks(t *testing.T) {
	t.Parallel()
	controller, _ := newRealController(t)
	directory := t.TempDir()
	accessLog := filepath.Join(directory, "logs", "access.log")
	errorLog := filepath.Join(directory, "logs", "error.log")
	if err := os.MkdirAll(filepath.Dir(accessLog), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(accessLog, []byte("previous\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	instance, err := controller.Launch(context.Background(), LaunchSpec{
		Command:   `echo "serving on $LISTEN_ADDRESS"; echo boom >&2`,
		Env:       []string{"LISTEN_ADDRESS=127.0.0.1:9"},
		AccessLog: accessLog,
		ErrorLog:  errorLog,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	testutil.RequireClosed(t, instance.exited, 5*time.Second, "short-lived command did not exit")

	access, _ := os.ReadFile(accessLog)
	if string(access) != "previous\nserving on 127.0.0.1:9\n" {
		t.Errorf("access log = %q, want appended output", access)
	}
	failures, _ := os.ReadFile(errorLog)
	if string(failures) != "boom\n" {
		t.Errorf("error log = %q", failures)
	}
}

func TestLaunchWaitsForReadiness(t *testing.T) {
	t.Parallel()
	controller, _ := newRealController(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		for {
			connection, err := listener.Accept()
			if err != nil {
				return
			}
			connection.Close()
		}
	}()

	instance, err := controller.Launch(context.Background(), LaunchSpec{
		Command:       "exec sleep 60",
		ListenAddress: listener.Addr().String(),
		ReadyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	t.Cleanup(func() { stopInstance(t, instance) })
	if instance.State != StateRunning {
		t.Errorf("state = %s, want RUNNING", instance.State)
	}
}

func TestLaunchEarlyExitIsLaunchError(t *testing.T) {
	t.Parallel()
	controller, registry := newRealController(t)

	// Reserve a port, then free it so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	address := listener.Addr().String()
	listener.Close()

	instance, err := controller.Launch(context.Background(), LaunchSpec{
		Command:       "exit 3",
		ListenAddress: address,
		ReadyTimeout:  10 * time.Second,
	})
	if !errors.Is(err, ErrProcessLaunch) {
		t.Fatalf("Launch error = %v, want ErrProcessLaunch", err)
	}
	if !strings.Contains(err.Error(), "exited before accepting connections") {
		t.Errorf("error %q does not report the early exit", err)
	}
	if instance.State != StateStarting {
		t.Errorf("state = %s, want STARTING", instance.State)
	}
	pid, ok, _ := registry.Read()
	if !ok || pid != instance.PID {
		t.Errorf("registry = (%d, %v), want the failed pid %d still recorded", pid, ok, instance.PID)
	}
}

func TestLaunchReadinessTimeout(t *testing.T) {
	t.Parallel()
	registry := pidfile.New(filepath.Join(t.TempDir(), "pkdeploy.pid"))
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	controller, err := New(Config{
		Registry:     registry,
		Processes:    &fakeTable{},
		Clock:        fakeClock,
		PollInterval: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	dials := 0
	controller.dial = func(context.Context, string, time.Duration) error {
		dials++
		return errors.New("connection refused")
	}

	results := make(chan error, 1)
	var instance Instance
	go func() {
		var err error
		instance, err = controller.Launch(context.Background(), LaunchSpec{
			Command:       "exec sleep 60",
			ListenAddress: "0.0.0.0:8080",
			ReadyTimeout:  3 * time.Second,
		})
		results <- err
	}()
	for range 3 {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(time.Second)
	}

	err = testutil.RequireReceive(t, results, 5*time.Second, "Launch did not give up")
	t.Cleanup(func() { stopInstance(t, instance) })
	if !errors.Is(err, ErrProcessLaunch) {
		t.Fatalf("Launch error = %v, want ErrProcessLaunch", err)
	}
	if !strings.Contains(err.Error(), "127.0.0.1:8080 not reachable") {
		t.Errorf("error %q does not name the dialled address", err)
	}
	if dials != 4 {
		t.Errorf("dials = %d, want 4", dials)
	}
}

func TestLaunchEmptyCommand(t *testing.T) {
	t.Parallel()
	controller, registry := newRealController(t)

	_, err := controller.Launch(context.Background(), LaunchSpec{})
	if !errors.Is(err, ErrProcessLaunch) {
		t.Fatalf("Launch error = %v, want ErrProcessLaunch", err)
	}
	assertRegistryEmpty(t, registry)
}

func TestDialableAddress(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"0.0.0.0:2026":   "127.0.0.1:2026",
		":8080":          "127.0.0.1:8080",
		"[::]:8080":      "[::1]:8080",
		"10.0.0.5:8080":  "10.0.0.5:8080",
		"not-an-address": "not-an-address",
	}
	for input, want := range tests {
		if got := dialableAddress(input); got != want {
			t.Errorf("dialableAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSystemProcessesAlive(t *testing.T) {
	t.Parallel()

	table, err := SystemProcesses("")
	if err != nil {
		t.Fatal(err)
	}
	alive, err := table.Alive(os.Getpid())
	if err != nil || !alive {
		t.Errorf("Alive(self) = (%v, %v), want true", alive, err)
	}
	if err := table.Signal(1<<22+1, 0); !errors.Is(err, unix.ESRCH) {
		t.Errorf("Signal(nonexistent) = %v, want ESRCH", err)
	}
}
