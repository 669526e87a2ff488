// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package release runs the build-and-migrate pipeline that prepares a
// revision of the site for serving.
//
// A [Pipeline] executes its steps strictly in order and abandons the
// run at the first failure: later steps are never started. The default
// steps are:
//
//  1. sync: resolve dependencies ([ErrDependencySync])
//  2. migrate: apply schema migrations ([ErrMigration])
//  3. build: compile static assets ([ErrBuild])
//  4. fixtures: load seed data ([ErrFixtureLoad])
//  5. collect: stage static files ([ErrStaticCollection])
//
// The first four run the profile's shell command in the site's source
// directory. Collection writes into a scratch directory beside the
// static root and only swaps it into place once the command succeeds,
// so a failed collection leaves the previous staged output untouched.
//
// Re-running a pipeline relies on the data layer: migrations must be
// idempotent and fixtures must upsert. The pipeline never touches the
// running server; that is the swap controller's job.
//
// Every step error is a [*StepError] that matches its step's sentinel
// through errors.Is, so callers can tell a failed build from a failed
// migration without string matching.
package release
