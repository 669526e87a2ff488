// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete pkdeploy command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	profilecmd "github.com/pythonkr/pkdeploy/cmd/pkdeploy/profile"
	publishcmd "github.com/pythonkr/pkdeploy/cmd/pkdeploy/publish"
	releasecmd "github.com/pythonkr/pkdeploy/cmd/pkdeploy/release"
	"github.com/pythonkr/pkdeploy/lib/version"
)

// Root builds and returns the pkdeploy command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "pkdeploy",
		Description: `pkdeploy: release orchestrator for the pythonkr web site.

Builds and stages a revision, swaps the running web server with a
bounded graceful wait, and publishes the static export to the
git-backed content host. Every command acts on one profile: local,
containerized-test, or production.`,
		Subcommands: []*cli.Command{
			releasecmd.Command(),
			publishcmd.Command(),
			profilecmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Printf("pkdeploy %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Deploy the checked-out revision to production",
				Command:     "pkdeploy release deploy --profile production",
			},
			{
				Description: "Publish the static site",
				Command:     "pkdeploy publish --profile production",
			},
			{
				Description: "See what a profile resolves to",
				Command:     "pkdeploy profile show local",
			},
		},
	}
}
