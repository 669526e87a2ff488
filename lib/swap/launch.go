// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pythonkr/pkdeploy/lib/logsink"
)

// LaunchSpec describes the server to start.
type LaunchSpec struct {
	// Command is run with sh -c. It should exec the server so the
	// recorded PID is the server rather than the shell.
	Command string

	// Dir is the working directory.
	Dir string

	// Env holds NAME=value pairs added to the orchestrator's own
	// environment.
	Env []string

	// ListenAddress is the host:port the server binds. It is informative
	// unless ReadyTimeout is positive.
	ListenAddress string

	// AccessLog receives the server's stdout and ErrorLog its stderr.
	// "-" is the console; empty discards the stream.
	AccessLog string
	ErrorLog  string

	// ReadyTimeout bounds the wait for ListenAddress to accept a
	// connection. Zero skips the readiness wait.
	ReadyTimeout time.Duration
}

// Instance is a launched server.
type Instance struct {
	PID           int    `json:"pid"`
	ListenAddress string `json:"listen_address,omitempty"`
	AccessLog     string `json:"access_log,omitempty"`
	ErrorLog      string `json:"error_log,omitempty"`
	State         State  `json:"state"`

	// exited is closed once the child has been reaped, which only
	// happens while the orchestrator itself is still running.
	exited <-chan struct{}
}

// Launch starts the server described by spec and records its PID.
// Call it only after RetireCurrent has returned.
//
// The server is started in a new session so it survives the
// orchestrator. When spec.ReadyTimeout is positive, Launch waits for
// the listen address to accept a connection; a server that exits first
// or never becomes reachable is a launch failure, and its PID stays
// recorded. Every returned error matches ErrProcessLaunch.
func (c *Controller) Launch(ctx context.Context, spec LaunchSpec) (Instance, error) {
	if spec.Command == "" {
		return Instance{}, fmt.Errorf("%w: empty launch command", ErrProcessLaunch)
	}

	c.state = StateStarting
	instance := Instance{
		ListenAddress: spec.ListenAddress,
		AccessLog:     spec.AccessLog,
		ErrorLog:      spec.ErrorLog,
		State:         StateStarting,
	}

	cmd := exec.Command("sh", "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var sinks []*logsink.Sink
	defer func() {
		// The child holds its own descriptors after Start.
		for _, sink := range sinks {
			sink.Close()
		}
	}()
	openSink := func(location string) (*os.File, error) {
		if location == "" {
			return nil, nil
		}
		sink, err := logsink.Open(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProcessLaunch, err)
		}
		sinks = append(sinks, sink)
		return sink.File, nil
	}
	stdout, err := openSink(spec.AccessLog)
	if err != nil {
		return instance, err
	}
	stderr, err := openSink(spec.ErrorLog)
	if err != nil {
		return instance, err
	}
	// Assigning a nil *os.File to the io.Writer fields would not read
	// as "discard", so only set them when a sink is open.
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}

	if err := cmd.Start(); err != nil {
		return instance, fmt.Errorf("%w: starting %q: %w", ErrProcessLaunch, spec.Command, err)
	}
	instance.PID = cmd.Process.Pid
	logger := c.logger.With("pid", instance.PID, "listen_address", spec.ListenAddress)

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()
	instance.exited = exited

	if err := c.registry.Record(instance.PID); err != nil {
		// An unrecorded server could never be retired. Stop it.
		_ = unix.Kill(-instance.PID, unix.SIGKILL)
		<-exited
		return instance, fmt.Errorf("%w: recording pid %d: %w", ErrProcessLaunch, instance.PID, err)
	}
	logger.Info("server started")

	if spec.ReadyTimeout <= 0 || spec.ListenAddress == "" {
		c.state = StateRunning
		instance.State = StateRunning
		return instance, nil
	}

	if err := c.waitReady(ctx, spec.ListenAddress, spec.ReadyTimeout, exited); err != nil {
		if errors.Is(err, errChildExited) {
			<-exited
			err = fmt.Errorf("%w (%v)", err, waitErr)
		}
		logger.Error("server did not become ready", "error", err)
		return instance, fmt.Errorf("%w: pid %d: %w", ErrProcessLaunch, instance.PID, err)
	}

	c.state = StateRunning
	instance.State = StateRunning
	logger.Info("server accepting connections")
	return instance, nil
}

var errChildExited = errors.New("server exited before accepting connections")

type dialFunc func(ctx context.Context, address string, timeout time.Duration) error

func dialTCP(ctx context.Context, address string, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	connection, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return connection.Close()
}

// waitReady polls address every interval until it accepts a connection,
// the child exits, or timeout elapses on the controller's clock.
func (c *Controller) waitReady(ctx context.Context, listenAddress string, timeout time.Duration, exited <-chan struct{}) error {
	address := dialableAddress(listenAddress)
	deadline := c.clock.Now().Add(timeout)
	var lastErr error
	for {
		select {
		case <-exited:
			return errChildExited
		default:
		}

		lastErr = c.dial(ctx, address, c.interval)
		if lastErr == nil {
			return nil
		}
		if !c.clock.Now().Before(deadline) {
			return fmt.Errorf("%s not reachable after %s: %w", address, timeout, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return errChildExited
		case <-c.clock.After(c.interval):
		}
	}
}

// dialableAddress maps wildcard hosts to loopback.
func dialableAddress(listenAddress string) string {
	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return listenAddress
	}
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::":
		host = "::1"
	}
	return net.JoinHostPort(host, port)
}
