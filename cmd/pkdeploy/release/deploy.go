// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/release"
	"github.com/pythonkr/pkdeploy/lib/swap"
)

type deployParams struct {
	cli.ProfileSelection
	cli.LockParams
	cli.JSONOutput
	pipelineParams
	swapParams
}

// deployResult is the --json form of a deploy. The swap fields are
// absent when the pipeline failed.
type deployResult struct {
	Run        *release.Run     `json:"run"`
	Retirement *swap.Retirement `json:"retirement,omitempty"`
	Instance   *swap.Instance   `json:"instance,omitempty"`
	State      swap.State       `json:"state,omitempty"`
}

func deployCommand(stdout io.Writer) *cli.Command {
	var params deployParams
	return &cli.Command{
		Name:    "deploy",
		Summary: "Run the pipeline, then swap the server",
		Description: `Run the release pipeline and, only if every step succeeded, retire
the running server and launch the new one. A failed step leaves the
running server untouched.`,
		Usage: "pkdeploy release deploy [--profile <name>] [--revision <id>] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("deploy", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			params.Stdout = stdout
			target, err := cli.OpenTarget(ctx, params.ProfileSelection, params.LockFile)
			if err != nil {
				return err
			}
			defer target.Close()

			run, err := runPipeline(ctx, target, params.pipelineParams)
			if run == nil {
				return err
			}
			if err != nil {
				return errors.Join(err, emitDeploy(stdout, &params.JSONOutput, deployResult{Run: run}))
			}

			swapped, swapErr := swapServer(ctx, target, params.swapParams, run.Revision)
			if swapped == nil {
				return errors.Join(swapErr, emitDeploy(stdout, &params.JSONOutput, deployResult{Run: run}))
			}
			result := deployResult{
				Run:        run,
				Retirement: &swapped.Retirement,
				Instance:   swapped.Instance,
				State:      swapped.State,
			}
			return errors.Join(swapErr, emitDeploy(stdout, &params.JSONOutput, result))
		},
	}
}

func emitDeploy(stdout io.Writer, output *cli.JSONOutput, result deployResult) error {
	if done, err := output.EmitJSON(result); done {
		return err
	}
	writeRunSummary(stdout, result.Run)
	if result.Retirement != nil {
		writeSwapSummary(stdout, swapResult{
			Retirement: *result.Retirement,
			Instance:   result.Instance,
			State:      result.State,
		})
	}
	return nil
}
