// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"errors"
	"fmt"
)

var (
	ErrDependencySync   = errors.New("dependency sync failed")
	ErrMigration        = errors.New("migration failed")
	ErrBuild            = errors.New("asset build failed")
	ErrFixtureLoad      = errors.New("fixture load failed")
	ErrStaticCollection = errors.New("static collection failed")
)

var stepKinds = map[StepName]error{
	StepSync:     ErrDependencySync,
	StepMigrate:  ErrMigration,
	StepBuild:    ErrBuild,
	StepFixtures: ErrFixtureLoad,
	StepCollect:  ErrStaticCollection,
}

// StepError reports the step that stopped a run.
type StepError struct {
	Step StepName

	// Kind is the step's sentinel, or nil for steps outside the
	// default set.
	Kind error

	Err error
}

func newStepError(step StepName, err error) *StepError {
	return &StepError{Step: step, Kind: stepKinds[step], Err: err}
}

func (e *StepError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("step %s: %v: %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying error.
func (e *StepError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}
