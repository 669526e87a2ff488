// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pidfile implements the process registry: a marker file that
// names the service instance the orchestrator intends to be running.
//
// The marker holds exactly one decimal process identifier followed by a
// newline. It records intended ownership, not liveness. The swap
// controller clears the marker as soon as it asks the old process to
// stop, before the process has actually exited, and a marker can outlive
// its process if the host crashes. Callers that need liveness must check
// the process table themselves.
//
// Writes are atomic (temporary file, fsync, rename, directory fsync), so
// a concurrent reader sees either the previous identifier, the new one,
// or no marker at all, never a truncated number. Record, Read, and Clear
// are all idempotent.
package pidfile
