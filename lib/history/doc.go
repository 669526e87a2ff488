// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps a SQLite record of release runs and publish
// operations under the profile's state directory, so an operator can
// see which revision went out when and which step stopped a failed run.
//
// The store is append-only. Writers are the release pipeline and the
// publish command; the reader is "pkdeploy release history".
package history
