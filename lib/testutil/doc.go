// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for pkdeploy packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so that
// tests driving the fake clock never hang forever when a goroutine fails
// to reach its next timer.
//
// [WriteTree] and [ReadTree] build and snapshot small directory trees
// given as path-to-content maps. The publish synchronizer tests compare
// whole trees this way.
//
// [RequireBinary] skips a test when an external tool (git, sh, sleep)
// is not on PATH.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
