// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// quietRoot returns a root command whose help output and logger are
// captured instead of going to stderr.
func quietRoot(subcommands ...*Command) (*Command, *bytes.Buffer) {
	var help bytes.Buffer
	return &Command{
		Name:        "pkdeploy",
		Subcommands: subcommands,
		Logger:      slog.New(slog.DiscardHandler),
		Output:      &help,
	}, &help
}

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root, _ := quietRoot(
		&Command{
			Name: "version",
			Run: func(_ context.Context, args []string, _ *slog.Logger) error {
				called = "version"
				return nil
			},
		},
		&Command{
			Name: "publish",
			Run: func(_ context.Context, args []string, _ *slog.Logger) error {
				called = "publish"
				return nil
			},
		},
	)

	if err := root.Execute(context.Background(), []string{"publish"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "publish" {
		t.Errorf("dispatched to %q, want %q", called, "publish")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var receivedArgs []string
	var receivedLogger *slog.Logger

	root, _ := quietRoot(&Command{
		Name: "release",
		Subcommands: []*Command{
			{
				Name: "run",
				Run: func(_ context.Context, args []string, logger *slog.Logger) error {
					receivedArgs = args
					receivedLogger = logger
					return nil
				},
			},
		},
	})

	if err := root.Execute(context.Background(), []string{"release", "run", "extra-arg"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra-arg" {
		t.Errorf("args = %v, want [extra-arg]", receivedArgs)
	}
	if receivedLogger != root.Logger {
		t.Error("nested command did not receive the root's logger")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var revision string
	var target string

	command := &Command{
		Name:   "run",
		Logger: slog.New(slog.DiscardHandler),
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&revision, "revision", "", "revision")
			return flagSet
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--revision", "abc123", "positional"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if revision != "abc123" {
		t.Errorf("revision = %q, want %q", revision, "abc123")
	}
	if target != "positional" {
		t.Errorf("target = %q, want %q", target, "positional")
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.String("revision", "", "revision")
			flagSet.String("lock-file", "", "lock file")
			return flagSet
		},
		Run: func(context.Context, []string, *slog.Logger) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--revison", "abc"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	message := err.Error()
	if !strings.Contains(message, "did you mean --revision") {
		t.Errorf("error = %q, want suggestion for '--revision'", message)
	}
	if !strings.Contains(message, "revison") {
		t.Errorf("error = %q, should mention the bad flag", message)
	}
	if !strings.Contains(message, "--help") {
		t.Errorf("error = %q, should point to --help", message)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.Bool("json", false, "json")
			return flagSet
		},
		Run: func(context.Context, []string, *slog.Logger) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root, _ := quietRoot(
		&Command{Name: "release"},
		&Command{Name: "publish"},
		&Command{Name: "version"},
	)

	err := root.Execute(context.Background(), []string{"relase"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `did you mean "release"`) {
		t.Errorf("error = %q, want suggestion for 'release'", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root, help := quietRoot(&Command{Name: "release", Summary: "Build and swap the server"})
			root.Summary = "Release orchestrator"

			if err := root.Execute(context.Background(), []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
			if !strings.Contains(help.String(), "Build and swap the server") {
				t.Errorf("help output missing subcommand summary:\n%s", help.String())
			}
		})
	}
}

func TestCommand_Execute_HelpAfterFlags(t *testing.T) {
	ran := false
	root, help := quietRoot(&Command{
		Name:    "run",
		Summary: "Run the pipeline",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.String("revision", "", "revision to build")
			return flagSet
		},
		Run: func(context.Context, []string, *slog.Logger) error {
			ran = true
			return nil
		},
	})

	if err := root.Execute(context.Background(), []string{"run", "--revision", "x", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if ran {
		t.Error("Run was called for a help request")
	}
	if !strings.Contains(help.String(), "revision to build") {
		t.Errorf("help output missing flag usage:\n%s", help.String())
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root, help := quietRoot(&Command{Name: "release", Summary: "Build and swap the server"})

	err := root.Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
	if !strings.Contains(help.String(), "Commands:") {
		t.Errorf("help not printed:\n%s", help.String())
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "pkdeploy",
		Description: "Release orchestrator.",
		Subcommands: []*Command{
			{Name: "release", Summary: "Build, migrate, and swap the server"},
			{Name: "publish", Summary: "Publish the static export"},
		},
		Examples: []Example{
			{
				Description: "Deploy production",
				Command:     "pkdeploy release deploy --profile production",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Release orchestrator.",
		"Usage:",
		"pkdeploy <command> [flags]",
		"Commands:",
		"release",
		"Publish the static export",
		"Examples:",
		"# Deploy production",
		"pkdeploy release deploy --profile production",
		"Run 'pkdeploy <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "pkdeploy"}
	release := &Command{Name: "release", parent: root}
	run := &Command{Name: "run", parent: release}

	if got := run.fullName(); got != "pkdeploy release run" {
		t.Errorf("run.fullName() = %q, want %q", got, "pkdeploy release run")
	}
	if run.root() != root {
		t.Error("root() did not walk to the top of the tree")
	}
}
