// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pythonkr/pkdeploy/lib/testutil"
)

func TestRunSuccess(t *testing.T) {
	testutil.RequireBinary(t, "sh")
	t.Parallel()

	var stdout bytes.Buffer
	err := Run(context.Background(), Command{
		Script: "echo \"$GREETING\"",
		Env:    []string{"GREETING=hello"},
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(stdout.String()); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	testutil.RequireBinary(t, "sh")
	t.Parallel()

	err := Run(context.Background(), Command{Script: "exit 3"})
	var exitError *ExitError
	if !errors.As(err, &exitError) {
		t.Fatalf("Run error = %v, want *ExitError", err)
	}
	if exitError.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitError.Code)
	}
}

func TestRunUsesWorkingDirectory(t *testing.T) {
	testutil.RequireBinary(t, "sh")
	t.Parallel()

	directory := t.TempDir()
	if err := Run(context.Background(), Command{Script: "touch marker", Dir: directory}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(directory, "marker")); err != nil {
		t.Errorf("marker not created in working directory: %v", err)
	}
}

func TestRunCancellationKillsProcessGroup(t *testing.T) {
	testutil.RequireBinary(t, "sh")
	testutil.RequireBinary(t, "sleep")
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Run(ctx, Command{Script: "sleep 30 & sleep 30; wait"})
	if err == nil {
		t.Fatal("Run succeeded, want cancellation error")
	}
	var exitError *ExitError
	if errors.As(err, &exitError) {
		t.Errorf("cancellation reported as exit status %d", exitError.Code)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run took %v after cancellation, children were not killed", elapsed)
	}
}

func TestRunEmptyScript(t *testing.T) {
	t.Parallel()
	if err := Run(context.Background(), Command{}); err == nil {
		t.Error("Run with empty script succeeded, want error")
	}
}

func TestExitErrorCarriesStderrTail(t *testing.T) {
	testutil.RequireBinary(t, "sh")
	t.Parallel()

	var output bytes.Buffer
	err := Run(context.Background(), Command{
		Script: "echo progress; echo 'relation \"site_page\" does not exist' >&2; exit 1",
		Stdout: &output,
		Stderr: &output,
	})
	var exitError *ExitError
	if !errors.As(err, &exitError) {
		t.Fatalf("Run error = %v, want *ExitError", err)
	}
	if exitError.Stderr != `relation "site_page" does not exist` {
		t.Errorf("Stderr = %q", exitError.Stderr)
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("error %q does not mention stderr", err)
	}
	if !strings.Contains(output.String(), "progress") || !strings.Contains(output.String(), "does not exist") {
		t.Errorf("shared output = %q, want both streams", output.String())
	}

	err = Run(context.Background(), Command{Script: "exit 2"})
	if !errors.As(err, &exitError) || exitError.Stderr != "" {
		t.Errorf("silent failure = %v, want *ExitError without stderr", err)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	t.Parallel()
	var buffer tailBuffer
	chunk := bytes.Repeat([]byte("x"), maxStderrTail/2+1)
	for range 3 {
		n, err := buffer.Write(chunk)
		if err != nil || n != len(chunk) {
			t.Fatalf("Write = (%d, %v), want (%d, nil)", n, err, len(chunk))
		}
	}
	buffer.Write([]byte("final error"))
	if buffer.Len() != maxStderrTail {
		t.Errorf("Len() = %d, want %d", buffer.Len(), maxStderrTail)
	}
	if got := buffer.String(); !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "final error") {
		t.Errorf("String() of %d bytes lacks the truncation marker or the last write", len(got))
	}
}
