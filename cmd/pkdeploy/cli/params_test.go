// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Revision string        `flag:"revision,r" desc:"revision to build"`
		DryRun   bool          `flag:"dry-run" desc:"plan only"`
		Limit    int           `flag:"limit" desc:"number of records"`
		Grace    time.Duration `flag:"grace" desc:"cancellation grace period"`
		Exclude  []string      `flag:"exclude" desc:"excluded prefixes"`
		Untagged string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	err := flagSet.Parse([]string{
		"-r", "abc123",
		"--dry-run",
		"--limit", "5",
		"--grace", "3s",
		"--exclude", "translations,crawl-cache",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Revision != "abc123" {
		t.Errorf("Revision = %q, want %q", p.Revision, "abc123")
	}
	if !p.DryRun {
		t.Error("DryRun = false, want true")
	}
	if p.Limit != 5 {
		t.Errorf("Limit = %d, want 5", p.Limit)
	}
	if p.Grace != 3*time.Second {
		t.Errorf("Grace = %v, want 3s", p.Grace)
	}
	if len(p.Exclude) != 2 || p.Exclude[1] != "crawl-cache" {
		t.Errorf("Exclude = %v, want [translations crawl-cache]", p.Exclude)
	}
	if flagSet.Lookup("untagged") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	type params struct {
		Limit   int           `flag:"limit" default:"20"`
		Grace   time.Duration `flag:"grace" default:"10s"`
		Verbose bool          `flag:"verbose" default:"true"`
		Exclude []string      `flag:"exclude" default:"a,b"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Limit != 20 || p.Grace != 10*time.Second || !p.Verbose || len(p.Exclude) != 2 {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestBindFlags_EnvironmentDefault(t *testing.T) {
	t.Setenv("PKDEPLOY_TEST_LOCK", "/run/pkdeploy.lock")

	type params struct {
		LockFile string `flag:"lock-file" desc:"advisory lock" env:"PKDEPLOY_TEST_LOCK"`
		Other    string `flag:"other" default:"fallback" env:"PKDEPLOY_TEST_UNSET"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.LockFile != "/run/pkdeploy.lock" {
		t.Errorf("LockFile = %q, want the environment value", p.LockFile)
	}
	if p.Other != "fallback" {
		t.Errorf("Other = %q, want the default tag when the variable is unset", p.Other)
	}
	if usage := flagSet.Lookup("lock-file").Usage; !strings.Contains(usage, "env PKDEPLOY_TEST_LOCK") {
		t.Errorf("usage = %q, want the environment variable named", usage)
	}

	// An explicit flag still wins.
	if err := flagSet.Parse([]string{"--lock-file", "/tmp/other.lock"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.LockFile != "/tmp/other.lock" {
		t.Errorf("LockFile = %q, want the flag value", p.LockFile)
	}
}

func TestBindFlags_EmbeddedAndBinder(t *testing.T) {
	type params struct {
		ProfileSelection
		JSONOutput
		Limit int `flag:"limit"`
	}

	var p params
	flagSet := FlagsFromParams("test", &p)
	for _, name := range []string{"profile", "config", "json", "limit"} {
		if flagSet.Lookup(name) == nil {
			t.Errorf("flag --%s not bound", name)
		}
	}
	if err := flagSet.Parse([]string{"-p", "production", "--json"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Profile != "production" || !p.OutputJSON {
		t.Errorf("params = %+v", p)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	type unsupported struct {
		Ratio float32 `flag:"ratio"`
	}
	type badDefault struct {
		Limit int `flag:"limit" default:"many"`
	}

	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(unsupported{}, flagSet); err == nil {
		t.Error("BindFlags accepted a non-pointer")
	}
	if err := BindFlags(&unsupported{}, flagSet); err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("BindFlags(float32) = %v, want unsupported type", err)
	}
	if err := BindFlags(&badDefault{}, flagSet); err == nil || !strings.Contains(err.Error(), "--limit") {
		t.Errorf("BindFlags(bad default) = %v, want error naming --limit", err)
	}
}
