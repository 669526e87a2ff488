// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish mirrors the exported static site into a git working
// tree and transmits it upstream.
//
// Publishing is three stages, each reported separately:
//
//   - Export runs the site's static export and snapshots the build
//     directory as a [Set]: every regular file with its size, mode, and
//     BLAKE3 digest.
//   - [Sync] reconciles the destination tree with the Set. Files are
//     copied only when their digest or mode differs, files the Set no
//     longer has are deleted, and directories left empty are pruned.
//     Paths matching an exclude rule are never read, written, or
//     deleted: they belong to whatever other tooling maintains them in
//     the mirror.
//   - [Publisher.Publish] commits the reconciled tree (at most one
//     commit per publish, none when nothing changed) and pushes it.
//
// A reconciliation that fails partway leaves the destination partially
// updated; publishing again converges it. A failed push keeps the local
// commit, and the next publish pushes it along with anything new.
package publish
