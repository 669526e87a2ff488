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
)

type historyParams struct {
	cli.ProfileSelection
	cli.JSONOutput
	Limit int `json:"limit" flag:"limit,n" desc:"number of records to show, newest first (0 for all)" default:"20"`
}

func historyCommand(stdout io.Writer) *cli.Command {
	var params historyParams
	return &cli.Command{
		Name:    "history",
		Summary: "Show recorded releases and publishes",
		Usage:   "pkdeploy release history [--profile <name>] [--limit N] [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("history", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			params.Stdout = stdout
			if params.Limit < 0 {
				return errors.New("--limit must not be negative")
			}
			target, err := cli.OpenTarget(ctx, params.ProfileSelection, "")
			if err != nil {
				return err
			}
			defer target.Close()

			records, err := target.History.Recent(ctx, params.Limit)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(records); done {
				return err
			}
			writeHistory(stdout, records)
			return nil
		},
	}
}
