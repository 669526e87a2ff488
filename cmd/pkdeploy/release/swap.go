// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/git"
	"github.com/pythonkr/pkdeploy/lib/history"
	"github.com/pythonkr/pkdeploy/lib/pidfile"
	"github.com/pythonkr/pkdeploy/lib/profile"
	"github.com/pythonkr/pkdeploy/lib/swap"
)

type swapCommandParams struct {
	cli.ProfileSelection
	cli.LockParams
	cli.JSONOutput
	swapParams
}

// swapResult is the --json form of a swap. State is the controller's
// lifecycle state once the swap returned.
type swapResult struct {
	Retirement swap.Retirement `json:"retirement"`
	Instance   *swap.Instance  `json:"instance,omitempty"`
	State      swap.State      `json:"state"`
}

func swapCommand(stdout io.Writer) *cli.Command {
	var params swapCommandParams
	return &cli.Command{
		Name:    "swap",
		Summary: "Retire the running server and launch a new one",
		Description: `Send SIGTERM to the registered server, wait (bounded by the profile's
retire interval and attempts) for it to exit, then launch the new
server and register its PID. A server launched by a command that does
not exec is stopped together with its whole process group.

A server that outlives the wait is logged and left behind; the launch
goes ahead. Every swap is recorded in the target's history.`,
		Usage: "pkdeploy release swap [--profile <name>] [--launch-command <cmd>] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("swap", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			params.Stdout = stdout
			target, err := cli.OpenTarget(ctx, params.ProfileSelection, params.LockFile)
			if err != nil {
				return err
			}
			defer target.Close()

			revision, err := git.NewRepository(target.Profile.Paths.Source).Head(ctx)
			if err != nil {
				target.Logger.Debug("swapping without a known revision", "error", err)
				revision = ""
			}
			result, err := swapServer(ctx, target, params.swapParams, revision)
			if result == nil {
				return err
			}
			return errors.Join(err, emitSwap(stdout, &params.JSONOutput, *result))
		},
	}
}

// swapServer builds a controller for target's profile, swaps the
// server, and records the swap in the target's history. The result is
// nil only when no controller could be built.
func swapServer(ctx context.Context, target *cli.Target, params swapParams, revision string) (*swapResult, error) {
	settings := target.Profile
	processes, err := swap.SystemProcesses(settings.Service.User)
	if err != nil {
		return nil, err
	}
	controller, err := swap.New(swap.Config{
		Registry:     pidfile.New(settings.PIDFilePath()),
		Processes:    processes,
		Logger:       target.Logger,
		PollInterval: settings.RetireInterval(),
		PollAttempts: settings.RetireAttempts(),
	})
	if err != nil {
		return nil, err
	}

	command := params.LaunchCommand
	if command == "" {
		command = settings.Service.LaunchCommand
	}
	started := time.Now()
	retirement, instance, err := controller.Swap(ctx, swap.LaunchSpec{
		Command:       command,
		Dir:           settings.Paths.Source,
		Env:           settings.Environment(),
		ListenAddress: settings.Service.ListenAddress,
		AccessLog:     settings.Service.AccessLog,
		ErrorLog:      settings.Service.ErrorLog,
		ReadyTimeout:  settings.ReadyTimeout(),
	})
	record := swapRecord(settings.Name, revision, started, time.Now(), retirement, err)
	if addErr := target.History.Add(context.WithoutCancel(ctx), record); addErr != nil {
		target.Logger.Warn("could not record swap history", "error", addErr)
	}

	result := &swapResult{Retirement: retirement, State: controller.State()}
	if instance.PID > 0 {
		result.Instance = &instance
	}
	return result, err
}

// swapRecord is the history form of a swap: a retire step and, once
// retirement succeeded, a launch step. Launch errors always wrap
// swap.ErrProcessLaunch; any other error stopped the retirement.
func swapRecord(name profile.Name, revision string, started, finished time.Time, retirement swap.Retirement, err error) history.Record {
	record := history.Record{
		ID:         uuid.NewString(),
		Kind:       history.KindSwap,
		Profile:    string(name),
		Revision:   revision,
		Status:     history.StatusSucceeded,
		StartedAt:  started,
		FinishedAt: finished,
	}
	retire := history.Step{Name: "retire", Status: history.StatusSucceeded, Duration: retirement.Waited}
	launch := history.Step{Name: "launch", Status: history.StatusSucceeded, Duration: max(finished.Sub(started)-retirement.Waited, 0)}
	switch {
	case err == nil:
		record.Steps = []history.Step{retire, launch}
	case errors.Is(err, swap.ErrProcessLaunch):
		launch.Status, launch.Error = history.StatusFailed, err.Error()
		record.Steps = []history.Step{retire, launch}
		record.Status, record.FailedStep, record.Error = history.StatusFailed, launch.Name, err.Error()
	default:
		retire.Status, retire.Error = history.StatusFailed, err.Error()
		record.Steps = []history.Step{retire}
		record.Status, record.FailedStep, record.Error = history.StatusFailed, retire.Name, err.Error()
	}
	return record
}

func emitSwap(stdout io.Writer, output *cli.JSONOutput, result swapResult) error {
	if done, err := output.EmitJSON(result); done {
		return err
	}
	writeSwapSummary(stdout, result)
	return nil
}
