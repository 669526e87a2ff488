// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pythonkr/pkdeploy/lib/profile"
	"github.com/pythonkr/pkdeploy/lib/shell"
)

// Exporter renders the static site.
type Exporter struct {
	// Output receives the export command's output. Nil discards it.
	Output io.Writer

	// GracePeriod is passed to the shell runner for cancellation.
	GracePeriod time.Duration

	Logger *slog.Logger
}

// Export empties the build directory, runs the profile's export
// command in its source directory with BUILD_DIR and RELEASE_REVISION
// set, then snapshots the build directory. Files left over from an
// earlier export never reach the set.
func (e *Exporter) Export(ctx context.Context, settings profile.Profile, revision string) (*Set, error) {
	script := settings.Commands.Export
	if script == "" {
		return nil, errors.New("no export command configured")
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	buildDir, err := exportDirectory(settings)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(buildDir); err != nil {
		return nil, fmt.Errorf("clearing build directory: %w", err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}

	start := time.Now()
	err = shell.Run(ctx, shell.Command{
		Script:      script,
		Dir:         settings.Paths.Source,
		Env:         append(settings.Environment(), "RELEASE_REVISION="+revision),
		Stdout:      e.Output,
		Stderr:      e.Output,
		GracePeriod: e.GracePeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("exporting static site: %w", err)
	}

	set, err := Scan(buildDir)
	if err != nil {
		return nil, err
	}
	logger.Info("static site exported",
		"build_dir", buildDir,
		"files", len(set.Files),
		"duration", time.Since(start),
	)
	return set, nil
}

// exportDirectory returns the absolute build directory, refusing one
// that is or contains the source tree, since Export empties it.
func exportDirectory(settings profile.Profile) (string, error) {
	if settings.Paths.BuildDir == "" {
		return "", errors.New("no build directory configured")
	}
	buildDir, err := filepath.Abs(settings.Paths.BuildDir)
	if err != nil {
		return "", fmt.Errorf("resolving build directory: %w", err)
	}
	source, err := filepath.Abs(settings.Paths.Source)
	if err != nil {
		return "", fmt.Errorf("resolving source directory: %w", err)
	}
	if relative, err := filepath.Rel(buildDir, source); err == nil && (relative == "." || filepath.IsLocal(relative)) {
		return "", fmt.Errorf("build directory %s contains the source tree %s", buildDir, source)
	}
	return buildDir, nil
}
