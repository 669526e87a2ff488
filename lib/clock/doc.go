// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the bounded
// polling loops in the swap controller (waiting for a retired process to
// exit, waiting for a new process to bind its address).
//
// Production code holds a Clock and never calls time.Sleep or time.After
// directly. Real() returns the standard library behavior. Fake() returns
// a clock that only moves when the test calls Advance, so a 30-second
// retirement bound can be exercised in microseconds:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go controller.RetireCurrent(ctx)
//	fake.WaitForTimers(1)      // the poll loop is now sleeping
//	fake.Advance(time.Second)  // wake it deterministically
package clock
