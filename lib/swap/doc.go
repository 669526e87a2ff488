// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package swap replaces the running web server with a new one.
//
// The swap is a cooperative hand-off, not a zero-downtime switch: the
// old process (named by the process registry) is asked to stop with
// SIGTERM, the registry entry is dropped straight away, and the
// controller waits a bounded time for the old process to exit. An old
// process that outlives the bound is logged as a degradation and the
// swap carries on, so for a moment two servers may contend for the
// listen address. Only then is the new server started, in its own
// session so it outlives the orchestrator, and its PID recorded.
//
// Lifecycle of a server instance:
//
//	UNKNOWN -> STARTING -> RUNNING -> RETIRING -> STOPPED
//
// A retirement that times out still ends in STOPPED as far as the
// controller is concerned.
//
// There is no automatic rollback. If the new server fails to start, the
// old one has already been retired and stays down until an operator
// intervenes.
package swap
