// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"errors"
	"fmt"
)

// ErrUnknownProfile matches every *UnknownProfileError via errors.Is.
var ErrUnknownProfile = errors.New("unknown profile")

// UnknownProfileError reports a profile name outside the fixed set.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown profile %q (valid: %s, %s, %s)",
		e.Name, Local, ContainerizedTest, Production)
}

// Is reports whether target is ErrUnknownProfile.
func (e *UnknownProfileError) Is(target error) bool {
	return target == ErrUnknownProfile
}
