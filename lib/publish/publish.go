// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pythonkr/pkdeploy/lib/git"
)

var (
	// ErrPublishReconcile covers every failure before the push: the
	// file reconciliation and recording it as a commit.
	ErrPublishReconcile = errors.New("publish reconciliation failed")

	// ErrPublishTransmit covers push failures. The local commit, if
	// one was made, is kept.
	ErrPublishTransmit = errors.New("publish transmission failed")
)

// Result describes a publish.
type Result struct {
	Changes   Changes `json:"changes"`
	Committed bool    `json:"committed"`
	CommitID  string  `json:"commit_id,omitempty"`
	Pushed    bool    `json:"pushed"`
}

// Publisher records reconciled trees in the destination's git history
// and pushes them upstream.
type Publisher struct {
	Remote string
	Branch string
	Author git.Author
	Logger *slog.Logger
}

// Publish reconciles destination with set, commits the result when the
// tree changed, and pushes to Remote/Branch. The push runs even when
// nothing was committed, so a commit left behind by an earlier failed
// push still goes out; pushing an up-to-date branch is a no-op and
// reports Pushed false.
func (p *Publisher) Publish(ctx context.Context, set *Set, destination string, rules Rules, message string) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("destination", destination)

	var result Result
	changes, err := Sync(set, destination, rules)
	result.Changes = changes
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrPublishReconcile, err)
	}
	logger.Info("destination reconciled",
		"added", len(changes.Added),
		"updated", len(changes.Updated),
		"deleted", len(changes.Deleted),
	)

	repository := git.NewRepository(destination)
	if err := repository.AddAll(ctx, rules.Prefixes()...); err != nil {
		return result, fmt.Errorf("%w: %w", ErrPublishReconcile, err)
	}
	staged, err := repository.HasStagedChanges(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrPublishReconcile, err)
	}
	if staged {
		commit, err := repository.Commit(ctx, message, p.Author)
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrPublishReconcile, err)
		}
		result.Committed = true
		result.CommitID = commit
		logger.Info("publish committed", "commit", commit)
	} else {
		logger.Info("nothing changed, no commit")
	}

	pushed, err := repository.Push(ctx, p.Remote, p.Branch)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrPublishTransmit, err)
	}
	result.Pushed = pushed
	logger.Info("publish transmitted", "remote", p.Remote, "branch", p.Branch, "sent", pushed)
	return result, nil
}
