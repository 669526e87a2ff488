// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile resolves which configuration profile governs a
// release or publish run.
//
// There are exactly three profiles: local, containerized-test, and
// production. Each is a [Profile] bundle naming the database target,
// static and media roots, the static export directory, the service's
// listen address and log sinks, the shell commands for every release
// step, and the publish destination. [Resolve] is a pure lookup; any
// other name fails with [*UnknownProfileError] before anything touches
// the disk or a process.
//
// The built-in catalog ([Default]) mirrors the reference deployment. A
// configuration file loaded with [LoadFile] may override any field,
// either for every profile (the "defaults" section) or for one profile
// (the "profiles.<name>" section). Fields absent from the file keep
// their built-in values; lists replace rather than append. Files ending
// in .json or .jsonc are read as JSONC (comments and trailing commas
// allowed); everything else is read as YAML.
//
// After overrides are applied, ${HOME} and ${VAR:-default} patterns are
// expanded in path fields. No other environment variables override
// configuration values.
package profile
