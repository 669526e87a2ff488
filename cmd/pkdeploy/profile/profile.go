// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile implements "pkdeploy profile": inspecting the
// resolved configuration of each deployment profile.
package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/profile"
)

// Command returns the "profile" command group.
func Command() *cli.Command {
	return command(os.Stdout)
}

func command(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "Inspect deployment profiles",
		Subcommands: []*cli.Command{
			showCommand(stdout),
			listCommand(stdout),
		},
	}
}

type showParams struct {
	cli.JSONOutput
	Config string `json:"config,omitempty" flag:"config" desc:"profile configuration file, YAML or JSONC" env:"PKDEPLOY_CONFIG"`
}

func showCommand(stdout io.Writer) *cli.Command {
	var params showParams
	return &cli.Command{
		Name:    "show",
		Summary: "Print a profile after configuration and variable expansion",
		Usage:   "pkdeploy profile show <name> [--config <file>] [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Check where production writes its logs",
				Command:     "pkdeploy profile show production",
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			params.Stdout = stdout
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one profile name, got %d arguments", len(args))
			}
			selection := cli.ProfileSelection{Profile: args[0], Config: params.Config}
			settings, err := selection.Resolve()
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(settings); done {
				return err
			}

			fmt.Fprintf(stdout, "# profile: %s\n", settings.Name)
			encoder := yaml.NewEncoder(stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(settings); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}

func listCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "List the profile names",
		Run: func(context.Context, []string, *slog.Logger) error {
			for _, name := range profile.Names {
				fmt.Fprintln(stdout, name)
			}
			return nil
		},
	}
}
