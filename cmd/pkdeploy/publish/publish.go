// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish implements "pkdeploy publish": exporting the static
// site and mirroring it into the git-backed content host.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/git"
	"github.com/pythonkr/pkdeploy/lib/history"
	"github.com/pythonkr/pkdeploy/lib/publish"
)

type publishParams struct {
	cli.ProfileSelection
	cli.LockParams
	cli.JSONOutput
	Revision    string        `json:"revision,omitempty" flag:"revision,r" desc:"revision being published (default: git rev-parse HEAD in the source directory)"`
	SkipExport  bool          `json:"skip_export" flag:"skip-export" desc:"publish the existing build directory without running the export command"`
	Message     string        `json:"message,omitempty" flag:"message,m" desc:"commit message (default: \"Publish <revision>\")"`
	GracePeriod time.Duration `json:"grace_period" flag:"grace-period" desc:"time a cancelled export gets between SIGTERM and SIGKILL" default:"10s"`
}

// publishOutput is the --json form of a publish.
type publishOutput struct {
	ID       string         `json:"id"`
	Revision string         `json:"revision"`
	Files    int            `json:"files"`
	Result   publish.Result `json:"result"`
}

// Command returns the "publish" command.
func Command() *cli.Command {
	return command(os.Stdout)
}

func command(stdout io.Writer) *cli.Command {
	var params publishParams
	return &cli.Command{
		Name:    "publish",
		Summary: "Export the static site and push it to the content host",
		Description: `Render the static site into the profile's build directory, mirror it
into the publish destination (a git working tree), commit once if
anything changed, and push to the configured remote and branch.

Paths matching the profile's exclude rules (and .git) are never
touched in the destination. A failed push keeps the local commit;
the next publish pushes it.`,
		Usage: "pkdeploy publish [--profile <name>] [--revision <id>] [--skip-export] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("publish", &params)
		},
		Examples: []cli.Example{
			{
				Description: "Publish production's static export",
				Command:     "pkdeploy publish --profile production",
			},
			{
				Description: "Re-publish the last build without exporting again",
				Command:     "pkdeploy publish --profile production --skip-export",
			},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			params.Stdout = stdout
			target, err := cli.OpenTarget(ctx, params.ProfileSelection, params.LockFile)
			if err != nil {
				return err
			}
			defer target.Close()

			output, err := run(ctx, target, params)
			if output == nil {
				return err
			}
			if done, emitErr := params.EmitJSON(output); done {
				return errors.Join(err, emitErr)
			}
			writeSummary(stdout, output, err)
			return err
		},
	}
}

// run publishes target and records the attempt in its history. The
// returned output is nil only when nothing was attempted.
func run(ctx context.Context, target *cli.Target, params publishParams) (*publishOutput, error) {
	settings := target.Profile
	rules, err := publish.NewRules(settings.Publish.Exclude...)
	if err != nil {
		return nil, err
	}

	revision := params.Revision
	if revision == "" {
		revision, err = git.NewRepository(settings.Paths.Source).Head(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving revision: %w", err)
		}
	}

	output := &publishOutput{ID: uuid.NewString(), Revision: revision}
	logger := target.Logger.With("publish_id", output.ID, "revision", revision)
	record := history.Record{
		ID:        output.ID,
		Kind:      history.KindPublish,
		Profile:   string(settings.Name),
		Revision:  revision,
		Status:    history.StatusSucceeded,
		StartedAt: time.Now(),
	}
	defer func() {
		record.FinishedAt = time.Now()
		if err := target.History.Add(context.WithoutCancel(ctx), record); err != nil {
			logger.Warn("could not record publish history", "error", err)
		}
	}()

	step := func(name string, action func() error) error {
		start := time.Now()
		err := action()
		entry := history.Step{Name: name, Status: history.StatusSucceeded, Duration: time.Since(start)}
		if err != nil {
			entry.Status = history.StatusFailed
			entry.Error = err.Error()
			record.Status = history.StatusFailed
			record.FailedStep = name
			record.Error = err.Error()
			logger.Error("publish step failed", "step", name, "error", err)
		}
		record.Steps = append(record.Steps, entry)
		return err
	}

	var set *publish.Set
	if params.SkipExport {
		err = step("scan", func() error {
			var scanErr error
			set, scanErr = publish.Scan(settings.Paths.BuildDir)
			return scanErr
		})
	} else {
		exporter := &publish.Exporter{
			Output:      target.Sinks.Access,
			GracePeriod: params.GracePeriod,
			Logger:      logger,
		}
		err = step("export", func() error {
			var exportErr error
			set, exportErr = exporter.Export(ctx, settings, revision)
			return exportErr
		})
	}
	if err != nil {
		return output, err
	}
	output.Files = len(set.Files)

	message := params.Message
	if message == "" {
		message = "Publish " + revision
	}
	publisher := &publish.Publisher{
		Remote: settings.Publish.Remote,
		Branch: settings.Publish.Branch,
		Author: git.Author{Name: settings.Publish.AuthorName, Email: settings.Publish.AuthorEmail},
		Logger: logger,
	}
	err = step("publish", func() error {
		var publishErr error
		output.Result, publishErr = publisher.Publish(ctx, set, settings.Publish.Destination, rules, message)
		return publishErr
	})
	return output, err
}

func writeSummary(w io.Writer, output *publishOutput, err error) {
	styles := cli.NewStyles(w)
	result := output.Result

	fmt.Fprintln(w, styles.Heading.Render(fmt.Sprintf("publish %s", output.ID)))
	fmt.Fprint(w, styles.Field("revision", output.Revision))
	fmt.Fprint(w, styles.Field("files", fmt.Sprint(output.Files)))
	fmt.Fprint(w, styles.Field("changes", fmt.Sprintf("%d added, %d updated, %d deleted",
		len(result.Changes.Added), len(result.Changes.Updated), len(result.Changes.Deleted))))
	if result.Committed {
		fmt.Fprint(w, styles.Field("commit", result.CommitID))
	} else {
		fmt.Fprint(w, styles.Field("commit", styles.Faint.Render("none")))
	}
	switch {
	case err != nil:
		fmt.Fprint(w, styles.Field("result", styles.Bad.Render("failed")))
	case result.Pushed:
		fmt.Fprint(w, styles.Field("result", styles.Good.Render("pushed")))
	default:
		fmt.Fprint(w, styles.Field("result", styles.Faint.Render("up to date")))
	}
}
