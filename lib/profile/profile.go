// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"errors"
	"fmt"
	"maps"
	"net"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

// Name identifies a configuration profile.
type Name string

const (
	// Local is a developer workstation.
	Local Name = "local"
	// ContainerizedTest is the docker-compose test stack.
	ContainerizedTest Name = "containerized-test"
	// Production is the live site.
	Production Name = "production"
)

// Names lists every valid profile in a stable order.
var Names = []Name{Local, ContainerizedTest, Production}

// Profile is the configuration bundle for one environment.
type Profile struct {
	// Name is set by the catalog and cannot be overridden from a file.
	Name Name `yaml:"-" json:"name"`

	// SettingsModule is exported as DJANGO_SETTINGS_MODULE to every
	// command the orchestrator runs.
	SettingsModule string `yaml:"settings_module" json:"settings_module"`

	// Debug is exported as DEBUG=1 or DEBUG=0.
	Debug bool `yaml:"debug" json:"debug"`

	Database DatabaseConfig `yaml:"database" json:"database"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Commands CommandsConfig `yaml:"commands" json:"commands"`
	Publish  PublishConfig  `yaml:"publish" json:"publish"`
}

// DatabaseConfig names the database target. Credentials are never part
// of a profile; the site reads them from its own environment.
type DatabaseConfig struct {
	Engine string `yaml:"engine" json:"engine"`
	Host   string `yaml:"host" json:"host,omitempty"`
	Name   string `yaml:"name" json:"name"`
	User   string `yaml:"user" json:"user,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Source is the checked-out site repository. Commands run here.
	Source string `yaml:"source" json:"source"`

	// StaticRoot is the staged static output served by the web server.
	StaticRoot string `yaml:"static_root" json:"static_root"`

	// MediaRoot holds uploaded media.
	MediaRoot string `yaml:"media_root" json:"media_root"`

	// BuildDir receives the fully rendered static export.
	BuildDir string `yaml:"build_dir" json:"build_dir"`

	// State holds the process marker and the release history database.
	State string `yaml:"state" json:"state"`

	// PIDFile overrides the process marker location. Default:
	// <state>/pkdeploy.pid.
	PIDFile string `yaml:"pid_file" json:"pid_file,omitempty"`

	// History overrides the release history database location.
	// Default: <state>/history.db.
	History string `yaml:"history" json:"history,omitempty"`
}

// ServiceConfig describes the long-running web server.
type ServiceConfig struct {
	// ListenAddress is the host:port the server binds. Exported to the
	// launch command as LISTEN_ADDRESS.
	ListenAddress string `yaml:"listen_address" json:"listen_address"`

	// User is the runtime user owning the server process. Retirement
	// only waits on processes owned by this user. Empty means the
	// orchestrator's own user.
	User string `yaml:"user" json:"user,omitempty"`

	// LaunchCommand starts the server in its own process group. A
	// command that does not exec the server is retired together with
	// the rest of that group.
	LaunchCommand string `yaml:"launch_command" json:"launch_command"`

	// AccessLog and ErrorLog are the two log sinks. "-" or empty means
	// the console; anything else is an append-only file.
	AccessLog string `yaml:"access_log" json:"access_log"`
	ErrorLog  string `yaml:"error_log" json:"error_log"`

	// RetireInterval and RetireAttempts bound the wait for a retired
	// process to exit. Default: 1s x 30.
	RetireInterval string `yaml:"retire_interval" json:"retire_interval"`
	RetireAttempts int    `yaml:"retire_attempts" json:"retire_attempts"`

	// ReadyTimeout bounds the wait for a new process to accept
	// connections on ListenAddress. "0" disables the readiness check.
	ReadyTimeout string `yaml:"ready_timeout" json:"ready_timeout"`
}

// CommandsConfig holds the shell command for each pipeline step.
type CommandsConfig struct {
	Sync     string `yaml:"sync" json:"sync"`
	Migrate  string `yaml:"migrate" json:"migrate"`
	Build    string `yaml:"build" json:"build"`
	Fixtures string `yaml:"fixtures" json:"fixtures"`

	// Collect must write into $STATIC_ROOT. The pipeline points it at a
	// scratch directory and swaps the result into place on success.
	Collect string `yaml:"collect" json:"collect"`

	// Export renders the static site into $BUILD_DIR.
	Export string `yaml:"export" json:"export"`
}

// PublishConfig describes the git-backed static mirror.
type PublishConfig struct {
	// Destination is a git working tree with an upstream remote.
	Destination string `yaml:"destination" json:"destination"`
	Remote      string `yaml:"remote" json:"remote"`
	Branch      string `yaml:"branch" json:"branch"`

	// Exclude lists path prefixes in the destination that publishing
	// never touches.
	Exclude []string `yaml:"exclude" json:"exclude"`

	AuthorName  string `yaml:"author_name" json:"author_name"`
	AuthorEmail string `yaml:"author_email" json:"author_email"`
}

// PIDFilePath returns the process marker location.
func (p Profile) PIDFilePath() string {
	if p.Paths.PIDFile != "" {
		return p.Paths.PIDFile
	}
	return filepath.Join(p.Paths.State, "pkdeploy.pid")
}

// HistoryPath returns the release history database location.
func (p Profile) HistoryPath() string {
	if p.Paths.History != "" {
		return p.Paths.History
	}
	return filepath.Join(p.Paths.State, "history.db")
}

// RetireInterval returns the parsed retirement poll interval.
func (p Profile) RetireInterval() time.Duration {
	interval, err := time.ParseDuration(p.Service.RetireInterval)
	if err != nil || interval <= 0 {
		return time.Second
	}
	return interval
}

// RetireAttempts returns the retirement poll bound.
func (p Profile) RetireAttempts() int {
	if p.Service.RetireAttempts <= 0 {
		return 30
	}
	return p.Service.RetireAttempts
}

// ReadyTimeout returns the parsed readiness bound. Zero disables the
// readiness check.
func (p Profile) ReadyTimeout() time.Duration {
	timeout, err := time.ParseDuration(p.Service.ReadyTimeout)
	if err != nil || timeout < 0 {
		return 0
	}
	return timeout
}

// Environment returns the NAME=value pairs exported to every command
// run under this profile.
func (p Profile) Environment() []string {
	debug := "0"
	if p.Debug {
		debug = "1"
	}
	return []string{
		"RELEASE_PROFILE=" + string(p.Name),
		"DJANGO_SETTINGS_MODULE=" + p.SettingsModule,
		"DEBUG=" + debug,
		"DATABASE_ENGINE=" + p.Database.Engine,
		"DATABASE_HOST=" + p.Database.Host,
		"DATABASE_NAME=" + p.Database.Name,
		"DATABASE_USER=" + p.Database.User,
		"STATIC_ROOT=" + p.Paths.StaticRoot,
		"MEDIA_ROOT=" + p.Paths.MediaRoot,
		"BUILD_DIR=" + p.Paths.BuildDir,
		"LISTEN_ADDRESS=" + p.Service.ListenAddress,
	}
}

// Validate checks the profile for errors and reports all of them.
func (p Profile) Validate() error {
	var errs []error

	if !valid(p.Name) {
		errs = append(errs, &UnknownProfileError{Name: string(p.Name)})
	}
	if p.SettingsModule == "" {
		errs = append(errs, errors.New("settings_module is required"))
	}
	required := map[string]string{
		"paths.source":           p.Paths.Source,
		"paths.static_root":      p.Paths.StaticRoot,
		"paths.build_dir":        p.Paths.BuildDir,
		"paths.state":            p.Paths.State,
		"service.listen_address": p.Service.ListenAddress,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if p.Paths.StaticRoot != "" && filepath.Clean(p.Paths.StaticRoot) == "/" {
		errs = append(errs, errors.New("paths.static_root must not be the filesystem root"))
	}
	if p.Service.ListenAddress != "" {
		if _, port, err := net.SplitHostPort(p.Service.ListenAddress); err != nil {
			errs = append(errs, fmt.Errorf("service.listen_address: %w", err))
		} else if number, err := strconv.Atoi(port); err != nil || number <= 0 || number > 65535 {
			errs = append(errs, fmt.Errorf("service.listen_address: invalid port %q", port))
		}
	}
	for _, field := range []struct{ key, value string }{
		{"service.retire_interval", p.Service.RetireInterval},
		{"service.ready_timeout", p.Service.ReadyTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.key, err))
		}
	}
	if p.Service.RetireAttempts < 0 {
		errs = append(errs, errors.New("service.retire_attempts must not be negative"))
	}
	for _, rule := range p.Publish.Exclude {
		if rule == "" || filepath.IsAbs(rule) {
			errs = append(errs, fmt.Errorf("publish.exclude: invalid rule %q (must be a non-empty relative prefix)", rule))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func valid(name Name) bool {
	return slices.Contains(Names, name)
}
