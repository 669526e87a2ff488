// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper for pkdeploy binaries:
// reporting an error that reached main to stderr and exiting, at a
// point where the structured logger may not exist.
package process
