// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite databases pkdeploy keeps under a
// profile's state directory.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection gets
// the same pragmas (WAL journal, NORMAL synchronous, a busy timeout so
// two orchestrator runs racing on the same history file wait instead of
// failing). Schema changes are an ordered list of migration scripts
// tracked through PRAGMA user_version; [Open] applies the ones a
// database has not seen yet, each in its own transaction.
//
//	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
//	    Path:       filepath.Join(state, "history.db"),
//	    Migrations: []string{schemaV1},
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// Callers write SQL directly with sqlitex.Execute and manage
// transactions with sqlitex.ImmediateTransaction.
package sqlitepool
