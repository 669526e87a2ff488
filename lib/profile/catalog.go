// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ConfigEnvironmentVariable names the optional configuration file.
const ConfigEnvironmentVariable = "PKDEPLOY_CONFIG"

// Catalog holds one resolved Profile per valid name.
type Catalog struct {
	profiles map[Name]Profile
}

// Default returns the built-in catalog.
func Default() *Catalog {
	catalog := &Catalog{profiles: make(map[Name]Profile, len(Names))}
	for _, name := range Names {
		profile := builtin(name)
		profile.expandVariables()
		catalog.profiles[name] = profile
	}
	return catalog
}

// Resolve looks up a profile in the built-in catalog.
func Resolve(name string) (Profile, error) {
	return Default().Resolve(name)
}

// Resolve returns the profile called name, or *UnknownProfileError.
// It has no side effects.
func (c *Catalog) Resolve(name string) (Profile, error) {
	profile, ok := c.profiles[Name(name)]
	if !ok {
		return Profile{}, &UnknownProfileError{Name: name}
	}
	// Hand out a private copy of the exclude list.
	profile.Publish.Exclude = append([]string(nil), profile.Publish.Exclude...)
	return profile, nil
}

// file is the on-disk layout of a configuration file.
type file struct {
	// Defaults applies to every profile.
	Defaults yaml.Node `yaml:"defaults"`

	// Profiles applies to one profile each, after Defaults.
	Profiles map[string]yaml.Node `yaml:"profiles"`
}

// Load reads the file named by PKDEPLOY_CONFIG, or returns the built-in
// catalog when the variable is unset.
func Load() (*Catalog, error) {
	path := os.Getenv(ConfigEnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a configuration file and applies it on top of the
// built-in catalog. Every resulting profile is validated.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile config: %w", err)
	}
	catalog, err := parse(data, isJSONC(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

func isJSONC(path string) bool {
	extension := strings.ToLower(filepath.Ext(path))
	return extension == ".json" || extension == ".jsonc"
}

func parse(data []byte, isJSON bool) (*Catalog, error) {
	// Plain JSON is a subset of YAML, so JSONC only needs its comments
	// and trailing commas stripped.
	if isJSON {
		data = jsonc.ToJSON(data)
	}

	var contents file
	if err := yaml.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("parsing profile config: %w", err)
	}

	for name := range contents.Profiles {
		if !valid(Name(name)) {
			return nil, fmt.Errorf("profiles section: %w", &UnknownProfileError{Name: name})
		}
	}

	catalog := &Catalog{profiles: make(map[Name]Profile, len(Names))}
	for _, name := range Names {
		profile := builtin(name)
		if !contents.Defaults.IsZero() {
			if err := contents.Defaults.Decode(&profile); err != nil {
				return nil, fmt.Errorf("defaults section: %w", err)
			}
		}
		if override, ok := contents.Profiles[string(name)]; ok && !override.IsZero() {
			if err := override.Decode(&profile); err != nil {
				return nil, fmt.Errorf("profiles.%s: %w", name, err)
			}
		}
		profile.Name = name
		profile.expandVariables()
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		catalog.profiles[name] = profile
	}
	return catalog, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (p *Profile) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	p.Paths.Source = expandVars(p.Paths.Source, vars)
	vars["SOURCE"] = p.Paths.Source

	for _, field := range []*string{
		&p.Paths.StaticRoot,
		&p.Paths.MediaRoot,
		&p.Paths.BuildDir,
		&p.Paths.State,
		&p.Paths.PIDFile,
		&p.Paths.History,
		&p.Service.AccessLog,
		&p.Service.ErrorLog,
		&p.Publish.Destination,
	} {
		*field = expandVars(*field, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
