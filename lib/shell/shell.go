// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package shell runs the site's tooling commands (dependency sync,
// migrations, asset builds, static export) through sh -c.
//
// Every command runs in its own process group so that cancelling the
// context stops the shell and every child it spawned, not just the
// shell. Without this, a child holding the inherited stdout open keeps
// the orchestrator blocked after the shell is gone.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Command describes one shell invocation.
type Command struct {
	// Script is passed to sh -c.
	Script string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds NAME=value pairs appended to the orchestrator's own
	// environment. Later entries win.
	Env []string

	// Stdout and Stderr receive the command's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// GracePeriod controls cancellation. Zero sends SIGKILL to the
	// process group immediately. A positive value sends SIGTERM first
	// and escalates to SIGKILL once the grace period has passed.
	GracePeriod time.Duration
}

// ExitError reports a command that ran to completion with a non-zero
// exit status.
type ExitError struct {
	Script string
	Code   int

	// Stderr holds the last few kilobytes the command wrote to
	// standard error.
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%q exited with code %d: %s", e.Script, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%q exited with code %d", e.Script, e.Code)
}

// Run executes the command and waits for it. A non-zero exit is
// returned as *ExitError carrying the tail of the command's stderr;
// failures to start, signals, and context cancellation are returned
// as-is.
func Run(ctx context.Context, command Command) error {
	if command.Script == "" {
		return errors.New("shell: empty command")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command.Script)
	cmd.Dir = command.Dir

	var tail tailBuffer
	stdout, stderr := command.Stdout, command.Stderr
	if stderr == nil {
		cmd.Stderr = &tail
	} else {
		if stdout == stderr {
			// Stdout and the stderr tee are copied by separate goroutines.
			shared := &lockedWriter{writer: stderr}
			stdout, stderr = shared, shared
		}
		cmd.Stderr = io.MultiWriter(stderr, &tail)
	}
	cmd.Stdout = stdout
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if command.GracePeriod > 0 {
		gracePeriod := command.GracePeriod
		cmd.Cancel = func() error {
			group := -cmd.Process.Pid
			if err := unix.Kill(group, unix.SIGTERM); err != nil {
				return unix.Kill(group, unix.SIGKILL)
			}
			go func() {
				time.Sleep(gracePeriod)
				// ESRCH once the group is gone is expected.
				_ = unix.Kill(group, unix.SIGKILL)
			}()
			return nil
		}
	} else {
		cmd.Cancel = func() error {
			return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		}
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) && exitError.ExitCode() >= 0 && ctx.Err() == nil {
		return &ExitError{Script: command.Script, Code: exitError.ExitCode(), Stderr: tail.String()}
	}
	return fmt.Errorf("running %q: %w", command.Script, err)
}
