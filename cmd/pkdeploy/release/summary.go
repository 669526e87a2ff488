// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pythonkr/pkdeploy/cmd/pkdeploy/cli"
	"github.com/pythonkr/pkdeploy/lib/history"
	"github.com/pythonkr/pkdeploy/lib/release"
	"github.com/pythonkr/pkdeploy/lib/swap"
)

func writeRunSummary(w io.Writer, run *release.Run) {
	styles := cli.NewStyles(w)
	var out strings.Builder

	out.WriteString(styles.Heading.Render(fmt.Sprintf("release %s (%s)", run.ID, run.Profile.Name)) + "\n")
	out.WriteString(styles.Field("revision", run.Revision))
	for _, outcome := range run.Outcomes {
		status := styles.Good.Render(string(outcome.Status))
		if outcome.Status != release.StepOK {
			status = styles.Bad.Render(string(outcome.Status))
		}
		out.WriteString(styles.Field(string(outcome.Step), status+"  "+styles.Faint.Render(round(outcome.Duration))))
	}
	if failed, ok := run.Failed(); ok {
		out.WriteString(styles.Field("result", styles.Bad.Render("abandoned at "+string(failed.Step))))
	} else {
		out.WriteString(styles.Field("result", styles.Good.Render("succeeded")+"  "+styles.Faint.Render(round(run.FinishedAt.Sub(run.StartedAt)))))
	}
	io.WriteString(w, out.String())
}

func writeSwapSummary(w io.Writer, result swapResult) {
	styles := cli.NewStyles(w)
	retirement := result.Retirement
	var out strings.Builder

	out.WriteString(styles.Heading.Render("swap") + "\n")
	switch retirement.Outcome {
	case swap.NothingToRetire:
		out.WriteString(styles.Field("retired", styles.Faint.Render("nothing registered")))
	case swap.TimedOut:
		out.WriteString(styles.Field("retired", styles.Warn.Render(fmt.Sprintf("pid %d still running after %s", retirement.PID, round(retirement.Waited)))))
	case "":
		out.WriteString(styles.Field("retired", styles.Bad.Render("failed")))
	default:
		out.WriteString(styles.Field("retired", fmt.Sprintf("pid %d %s after %s", retirement.PID, retirement.Outcome, round(retirement.Waited))))
	}
	if instance := result.Instance; instance != nil {
		launched := fmt.Sprintf("pid %d", instance.PID)
		if instance.ListenAddress != "" {
			launched += " on " + instance.ListenAddress
		}
		out.WriteString(styles.Field("launched", styles.Good.Render(launched)))
	}
	state := string(result.State)
	switch result.State {
	case swap.StateRunning:
		state = styles.Good.Render(state)
	case swap.StateStarting, swap.StateRetiring:
		state = styles.Warn.Render(state)
	default:
		state = styles.Faint.Render(state)
	}
	out.WriteString(styles.Field("state", state))
	io.WriteString(w, out.String())
}

func writeHistory(w io.Writer, records []history.Record) {
	styles := cli.NewStyles(w)
	if len(records) == 0 {
		io.WriteString(w, styles.Faint.Render("no recorded operations")+"\n")
		return
	}

	var out strings.Builder
	for _, record := range records {
		status := styles.Good.Render(string(record.Status))
		if record.Status != history.StatusSucceeded {
			status = styles.Bad.Render(string(record.Status))
			if record.FailedStep != "" {
				status += " at " + record.FailedStep
			}
		}
		fmt.Fprintf(&out, "%s  %-8s %-12s %s  %s\n",
			styles.Faint.Render(record.StartedAt.Local().Format(time.DateTime)),
			record.Kind,
			shortRevision(record.Revision),
			status,
			styles.Faint.Render(round(record.FinishedAt.Sub(record.StartedAt))),
		)
	}
	io.WriteString(w, out.String())
}

func round(duration time.Duration) string {
	return duration.Round(time.Millisecond).String()
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}
