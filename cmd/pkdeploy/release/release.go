// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package release implements the "pkdeploy release" commands: running
// the build pipeline, swapping the server process, and reading the
// release history.
package release

import (
	"io"
	"os"
	"time"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
)

// Command returns the "release" command group.
func Command() *cli.Command {
	return command(os.Stdout)
}

func command(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "release",
		Summary: "Build, migrate, and swap the web server",
		Description: `Run the release pipeline and replace the running web server.

"run" executes the pipeline (dependency sync, migrations, asset build,
fixtures, static collection) and stops at the first failing step.
"swap" retires the registered server and launches a new one. "deploy"
does both, swapping only after every step succeeded.`,
		Subcommands: []*cli.Command{
			runCommand(stdout),
			swapCommand(stdout),
			deployCommand(stdout),
			historyCommand(stdout),
		},
		Examples: []cli.Example{
			{
				Description: "Deploy the checked-out revision to production",
				Command:     "pkdeploy release deploy --profile production --lock-file /home/pk/run/deploy.lock",
			},
			{
				Description: "Rebuild without touching the running server",
				Command:     "pkdeploy release run --profile local",
			},
			{
				Description: "Show the last five releases as JSON",
				Command:     "pkdeploy release history --profile production --limit 5 --json",
			},
		},
	}
}

// pipelineParams are the flags shared by commands that run the
// pipeline.
type pipelineParams struct {
	Revision    string        `json:"revision,omitempty" flag:"revision,r" desc:"revision being released (default: git rev-parse HEAD in the source directory)"`
	ResultLog   string        `json:"result_log,omitempty" flag:"result-log" desc:"append a JSONL record of the run to this file"`
	GracePeriod time.Duration `json:"grace_period" flag:"grace-period" desc:"time a cancelled step command gets between SIGTERM and SIGKILL" default:"10s"`
}

// swapParams are the flags shared by commands that replace the server.
type swapParams struct {
	LaunchCommand string `json:"launch_command,omitempty" flag:"launch-command" desc:"command that starts the server (default: the profile's launch command)"`
}
