// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/pythonkr/pkdeploy/lib/profile"
)

// ProfileEnvironmentVariable selects the profile when --profile is not
// given.
const ProfileEnvironmentVariable = "PKDEPLOY_PROFILE"

// ProfileSelection is the --profile and --config pair shared by every
// command that acts on a deployment target.
type ProfileSelection struct {
	Profile string `json:"profile"`
	Config  string `json:"config,omitempty"`
}

// AddFlags binds --profile and --config. Their defaults come from
// PKDEPLOY_PROFILE and PKDEPLOY_CONFIG.
func (s *ProfileSelection) AddFlags(flagSet *pflag.FlagSet) {
	defaultProfile := os.Getenv(ProfileEnvironmentVariable)
	if defaultProfile == "" {
		defaultProfile = string(profile.Local)
	}
	flagSet.StringVarP(&s.Profile, "profile", "p", defaultProfile,
		"deployment profile: local, containerized-test, or production (env "+ProfileEnvironmentVariable+")")
	flagSet.StringVar(&s.Config, "config", os.Getenv(profile.ConfigEnvironmentVariable),
		"profile configuration file, YAML or JSONC (env "+profile.ConfigEnvironmentVariable+")")
}

// Resolve loads the catalog and returns the selected profile. An
// unknown name fails here, before any command has a side effect.
func (s *ProfileSelection) Resolve() (profile.Profile, error) {
	var (
		catalog *profile.Catalog
		err     error
	)
	if s.Config != "" {
		catalog, err = profile.LoadFile(s.Config)
	} else {
		catalog, err = profile.Load()
	}
	if err != nil {
		return profile.Profile{}, err
	}
	return catalog.Resolve(s.Profile)
}
