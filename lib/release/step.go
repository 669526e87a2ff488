// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pythonkr/pkdeploy/lib/profile"
	"github.com/pythonkr/pkdeploy/lib/shell"
)

// StepName identifies a pipeline step.
type StepName string

const (
	StepSync     StepName = "sync"
	StepMigrate  StepName = "migrate"
	StepBuild    StepName = "build"
	StepFixtures StepName = "fixtures"
	StepCollect  StepName = "collect"
)

// Step is one unit of a release run.
type Step interface {
	Name() StepName
	Run(ctx context.Context, run *Run) error
}

// DefaultSteps returns the five release steps in execution order.
func DefaultSteps() []Step {
	return []Step{
		CommandStep{StepName: StepSync, Command: func(c profile.CommandsConfig) string { return c.Sync }},
		CommandStep{StepName: StepMigrate, Command: func(c profile.CommandsConfig) string { return c.Migrate }},
		CommandStep{StepName: StepBuild, Command: func(c profile.CommandsConfig) string { return c.Build }},
		CommandStep{StepName: StepFixtures, Command: func(c profile.CommandsConfig) string { return c.Fixtures }},
		CollectStep{},
	}
}

// CommandStep runs one of the profile's shell commands in the source
// directory.
type CommandStep struct {
	StepName StepName

	// Command selects the script from the profile.
	Command func(profile.CommandsConfig) string
}

func (s CommandStep) Name() StepName { return s.StepName }

func (s CommandStep) Run(ctx context.Context, run *Run) error {
	script := s.Command(run.Profile.Commands)
	if script == "" {
		return fmt.Errorf("no %s command configured for profile %s", s.StepName, run.Profile.Name)
	}
	return run.shell(ctx, script, nil)
}

// CollectStep runs the profile's collect command with STATIC_ROOT
// pointed at a fresh scratch directory beside the static root, then
// swaps the scratch directory into place.
type CollectStep struct{}

func (CollectStep) Name() StepName { return StepCollect }

func (CollectStep) Run(ctx context.Context, run *Run) error {
	script := run.Profile.Commands.Collect
	if script == "" {
		return fmt.Errorf("no collect command configured for profile %s", run.Profile.Name)
	}
	root, err := filepath.Abs(run.Profile.Paths.StaticRoot)
	if err != nil {
		return fmt.Errorf("resolving static root: %w", err)
	}
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating static root parent: %w", err)
	}

	scratch, err := os.MkdirTemp(parent, filepath.Base(root)+".staging-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	if err := os.Chmod(scratch, 0o755); err != nil {
		os.RemoveAll(scratch)
		return fmt.Errorf("creating staging directory: %w", err)
	}

	if err := run.shell(ctx, script, []string{"STATIC_ROOT=" + scratch}); err != nil {
		os.RemoveAll(scratch)
		return err
	}
	if err := replaceDirectory(root, scratch, run.ID.String(), run.logger); err != nil {
		os.RemoveAll(scratch)
		return err
	}
	return nil
}

// replaceDirectory moves replacement to target. An existing target is
// renamed aside first and removed after the swap, so target is only
// ever absent for the instant between the two renames.
func replaceDirectory(target, replacement, token string, logger *slog.Logger) error {
	retired := target + ".retired-" + token
	_, err := os.Lstat(target)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.Rename(replacement, target); err != nil {
			return fmt.Errorf("installing staged output: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("inspecting static root: %w", err)
	}

	if err := os.Rename(target, retired); err != nil {
		return fmt.Errorf("moving previous staged output aside: %w", err)
	}
	if err := os.Rename(replacement, target); err != nil {
		if restoreErr := os.Rename(retired, target); restoreErr != nil {
			return fmt.Errorf("installing staged output: %w (previous output left at %s: %v)", err, retired, restoreErr)
		}
		return fmt.Errorf("installing staged output: %w", err)
	}
	if err := os.RemoveAll(retired); err != nil {
		logger.Warn("could not remove previous staged output", "path", retired, "error", err)
	}
	return nil
}

// shell runs script for this run with the run's environment plus
// extra, in the profile's source directory.
func (r *Run) shell(ctx context.Context, script string, extra []string) error {
	return shell.Run(ctx, shell.Command{
		Script:      script,
		Dir:         r.Profile.Paths.Source,
		Env:         append(r.Environment(), extra...),
		Stdout:      r.output,
		Stderr:      r.output,
		GracePeriod: r.gracePeriod,
	})
}
