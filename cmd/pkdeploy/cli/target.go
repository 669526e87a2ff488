// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pythonkr/pkdeploy/lib/deploylock"
	"github.com/pythonkr/pkdeploy/lib/history"
	"github.com/pythonkr/pkdeploy/lib/logsink"
	"github.com/pythonkr/pkdeploy/lib/profile"
)

// LockParams adds --lock-file to a command that changes a deployment
// target.
type LockParams struct {
	LockFile string `json:"lock_file,omitempty" flag:"lock-file" desc:"hold an advisory lock on this file for the whole run; a concurrent run fails fast" env:"PKDEPLOY_LOCK_FILE"`
}

// Target is a resolved profile together with the resources a command
// holds while acting on it.
type Target struct {
	Profile profile.Profile

	// Logger writes Error records to the profile's error sink and
	// everything else to its access sink.
	Logger *slog.Logger

	// Sinks are the profile's log sinks. Step command output is
	// appended to Sinks.Access.
	Sinks *logsink.Pair

	// History is the release history store.
	History *history.Store

	lock *deploylock.Lock
}

// OpenTarget resolves the selected profile and opens its log sinks and
// history store. A non-empty lockFile is acquired first and held until
// Close. Nothing is opened when the profile does not resolve.
func OpenTarget(ctx context.Context, selection ProfileSelection, lockFile string) (*Target, error) {
	settings, err := selection.Resolve()
	if err != nil {
		return nil, err
	}

	target := &Target{Profile: settings}
	success := false
	defer func() {
		if !success {
			target.Close()
		}
	}()

	if lockFile != "" {
		target.lock, err = deploylock.Acquire(lockFile)
		if err != nil {
			return nil, err
		}
	}

	target.Sinks, err = logsink.OpenPair(settings.Service.AccessLog, settings.Service.ErrorLog)
	if err != nil {
		return nil, fmt.Errorf("opening log sinks: %w", err)
	}
	target.Logger = target.Sinks.Logger(slog.LevelInfo).With("profile", string(settings.Name))

	// The PID marker may live outside the state directory.
	historyPath := settings.HistoryPath()
	for _, directory := range []string{filepath.Dir(historyPath), filepath.Dir(settings.PIDFilePath())} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	target.History, err = history.Open(ctx, historyPath, target.Logger)
	if err != nil {
		return nil, err
	}

	success = true
	return target, nil
}

// Close releases everything OpenTarget acquired, the lock last.
func (t *Target) Close() error {
	var errs []error
	if t.History != nil {
		errs = append(errs, t.History.Close())
	}
	if t.Sinks != nil {
		errs = append(errs, t.Sinks.Close())
	}
	if t.lock != nil {
		errs = append(errs, t.lock.Release())
	}
	return errors.Join(errs...)
}
