// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/release"
)

type runParams struct {
	cli.ProfileSelection
	cli.LockParams
	cli.JSONOutput
	pipelineParams
}

func runCommand(stdout io.Writer) *cli.Command {
	var params runParams
	return &cli.Command{
		Name:    "run",
		Summary: "Run the release pipeline",
		Description: `Run every release step in order, abandoning the run at the first
failure. The running server is not touched.

Exits non-zero when a step fails; the error names the step.`,
		Usage: "pkdeploy release run [--profile <name>] [--revision <id>] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("run", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			params.Stdout = stdout
			target, err := cli.OpenTarget(ctx, params.ProfileSelection, params.LockFile)
			if err != nil {
				return err
			}
			defer target.Close()

			run, err := runPipeline(ctx, target, params.pipelineParams)
			if run != nil {
				if done, emitErr := params.EmitJSON(run); done {
					if emitErr != nil {
						return emitErr
					}
				} else {
					writeRunSummary(stdout, run)
				}
			}
			return err
		},
	}
}

// runPipeline runs the default pipeline against target, recording the
// run in the target's history.
func runPipeline(ctx context.Context, target *cli.Target, params pipelineParams) (*release.Run, error) {
	pipeline := release.New(release.Config{
		Logger:        target.Logger,
		Output:        target.Sinks.Access,
		GracePeriod:   params.GracePeriod,
		History:       target.History,
		ResultLogPath: params.ResultLog,
	})
	return pipeline.Run(ctx, target.Profile, params.Revision)
}
