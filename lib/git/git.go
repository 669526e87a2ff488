// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI. pkdeploy uses git
// in two places: resolving the revision being released when the
// operator does not supply one, and recording and transmitting each
// static publish in the destination mirror's own history.
//
// All commands target a specific repository directory via the -C flag,
// which every Repository method injects.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Author is the identity recorded on commits created by pkdeploy.
type Author struct {
	Name  string
	Email string
}

// Repository represents a git working tree at a specific directory.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Run executes a git command against this repository and returns
// stdout. Stderr is included in the error on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	stdout, _, err := r.run(ctx, nil, args...)
	return stdout, err
}

func (r *Repository) run(ctx context.Context, env []string, args ...string) (string, string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if len(env) > 0 {
		command.Env = append(command.Environ(), env...)
	}

	if err := command.Run(); err != nil {
		return "", "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), nil
}

// Head returns the full commit hash of HEAD.
func (r *Repository) Head(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "--verify", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// AddAll stages every addition, modification, and deletion in the
// working tree, except under the slash-separated path prefixes in
// exclude.
func (r *Repository) AddAll(ctx context.Context, exclude ...string) error {
	args := []string{"add", "--all"}
	if len(exclude) > 0 {
		args = append(args, "--", ".")
		for _, prefix := range exclude {
			args = append(args, ":(exclude)"+prefix)
		}
	}
	_, err := r.Run(ctx, args...)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD. A
// repository without any commit yet reports true when anything is
// staged.
func (r *Repository) HasStagedChanges(ctx context.Context) (bool, error) {
	if _, err := r.Head(ctx); err != nil {
		output, err := r.Run(ctx, "ls-files", "--cached")
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(output) != "", nil
	}
	command := r.Command(ctx, "diff", "--cached", "--quiet")
	err := command.Run()
	if err == nil {
		return false, nil
	}
	if exitError, ok := err.(*exec.ExitError); ok && exitError.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached --quiet in %s: %w", r.dir, err)
}

// Commit records the staged changes as one commit and returns its hash.
// Author and committer are both set to author when it is non-empty.
func (r *Repository) Commit(ctx context.Context, message string, author Author) (string, error) {
	var env []string
	if author.Name != "" {
		env = append(env, "GIT_AUTHOR_NAME="+author.Name, "GIT_COMMITTER_NAME="+author.Name)
	}
	if author.Email != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+author.Email, "GIT_COMMITTER_EMAIL="+author.Email)
	}
	if _, _, err := r.run(ctx, env, "commit", "--quiet", "--no-verify", "-m", message); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// Push transmits HEAD to branch on remote. It reports false when the
// remote already had every ref and nothing was sent.
func (r *Repository) Push(ctx context.Context, remote, branch string) (bool, error) {
	stdout, _, err := r.run(ctx, nil, "push", "--porcelain", remote, "HEAD:refs/heads/"+branch)
	if err != nil {
		return false, err
	}
	return pushSentRefs(stdout), nil
}

// pushSentRefs inspects "git push --porcelain" output. Ref lines have
// the form "<flag>\t<from>:<to>\t<summary>"; the flag "=" marks a ref
// that was already up to date.
func pushSentRefs(porcelain string) bool {
	for _, line := range strings.Split(porcelain, "\n") {
		if !strings.Contains(line, "\t") {
			continue
		}
		if line[0] != '=' {
			return true
		}
	}
	return false
}

// Command returns an *exec.Cmd for a git command without running it.
// The -C flag targeting this repository is prepended.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	return exec.CommandContext(ctx, "git", fullArgs...)
}
