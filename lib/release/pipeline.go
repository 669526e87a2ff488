// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pythonkr/pkdeploy/lib/clock"
	"github.com/pythonkr/pkdeploy/lib/git"
	"github.com/pythonkr/pkdeploy/lib/history"
	"github.com/pythonkr/pkdeploy/lib/profile"
)

// StepStatus is the result of one executed step.
type StepStatus string

const (
	StepOK     StepStatus = "ok"
	StepFailed StepStatus = "failed"
)

// StepOutcome records one executed step.
type StepOutcome struct {
	Step     StepName      `json:"step"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Run is one execution of the pipeline.
type Run struct {
	ID         uuid.UUID       `json:"id"`
	Profile    profile.Profile `json:"-"`
	Revision   string          `json:"revision"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`

	// Outcomes holds one entry per executed step, in execution order.
	// Steps after a failure have no entry.
	Outcomes []StepOutcome `json:"outcomes"`

	output      io.Writer
	gracePeriod time.Duration
	logger      *slog.Logger
}

// Environment returns the variables exported to every step command:
// the profile's environment plus RELEASE_REVISION and RELEASE_ID.
func (r *Run) Environment() []string {
	return append(r.Profile.Environment(),
		"RELEASE_REVISION="+r.Revision,
		"RELEASE_ID="+r.ID.String(),
	)
}

// Succeeded reports whether every step ran and none failed.
func (r *Run) Succeeded() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Status != StepOK {
			return false
		}
	}
	return !r.FinishedAt.IsZero()
}

// Failed returns the failed step's outcome, if any.
func (r *Run) Failed() (StepOutcome, bool) {
	for _, outcome := range r.Outcomes {
		if outcome.Status == StepFailed {
			return outcome, true
		}
	}
	return StepOutcome{}, false
}

// Recorder stores finished runs.
type Recorder interface {
	Add(ctx context.Context, record history.Record) error
}

// Config holds a Pipeline's collaborators. Every field is optional.
type Config struct {
	// Steps defaults to DefaultSteps().
	Steps []Step

	Clock  clock.Clock
	Logger *slog.Logger

	// Output receives step command output. Nil discards it.
	Output io.Writer

	// GracePeriod is how long a cancelled step command gets between
	// SIGTERM and SIGKILL. Zero kills immediately.
	GracePeriod time.Duration

	// History, when set, receives every finished run. Write failures
	// are logged, never returned.
	History Recorder

	// ResultLogPath, when set, has a JSONL record of each run appended
	// to it. Every run's lines begin with a "start" entry naming it.
	ResultLogPath string

	// ResolveRevision is called when Run is given an empty revision.
	// Defaults to git rev-parse HEAD in the profile's source directory.
	ResolveRevision func(ctx context.Context, sourceDir string) (string, error)
}

// Pipeline executes release steps in order.
type Pipeline struct {
	config Config
}

// New returns a Pipeline.
func New(config Config) *Pipeline {
	if config.Steps == nil {
		config.Steps = DefaultSteps()
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.ResolveRevision == nil {
		config.ResolveRevision = func(ctx context.Context, sourceDir string) (string, error) {
			return git.NewRepository(sourceDir).Head(ctx)
		}
	}
	return &Pipeline{config: config}
}

// Steps returns the configured step names in execution order.
func (p *Pipeline) Steps() []StepName {
	names := make([]StepName, len(p.config.Steps))
	for i, step := range p.config.Steps {
		names[i] = step.Name()
	}
	return names
}

// Run executes every step for revision under settings. It returns the
// run record even on failure; the error is a *StepError naming the
// step that stopped the run. An empty revision is resolved first, and
// failing to resolve it starts no step and returns a nil run.
func (p *Pipeline) Run(ctx context.Context, settings profile.Profile, revision string) (*Run, error) {
	if revision == "" {
		resolved, err := p.config.ResolveRevision(ctx, settings.Paths.Source)
		if err != nil {
			return nil, fmt.Errorf("resolving revision: %w", err)
		}
		revision = resolved
	}

	run := &Run{
		ID:          uuid.New(),
		Profile:     settings,
		Revision:    revision,
		StartedAt:   p.config.Clock.Now(),
		Outcomes:    make([]StepOutcome, 0, len(p.config.Steps)),
		output:      p.config.Output,
		gracePeriod: p.config.GracePeriod,
	}
	logger := p.config.Logger.With(
		"release_id", run.ID.String(),
		"profile", string(settings.Name),
		"revision", revision,
	)
	run.logger = logger

	results := p.openResultLog(logger)
	defer results.Close()
	results.writeStart(run, len(p.config.Steps))
	logger.Info("release started", "steps", len(p.config.Steps))

	var failure *StepError
	for index, step := range p.config.Steps {
		name := step.Name()
		stepStart := p.config.Clock.Now()
		err := step.Run(ctx, run)
		outcome := StepOutcome{
			Step:     name,
			Status:   StepOK,
			Duration: p.config.Clock.Now().Sub(stepStart),
		}
		if err != nil {
			outcome.Status = StepFailed
			outcome.Error = err.Error()
		}
		run.Outcomes = append(run.Outcomes, outcome)
		results.writeStep(index, outcome)

		if err != nil {
			failure = newStepError(name, err)
			logger.Error("release step failed", "step", string(name), "duration", outcome.Duration, "error", err)
			break
		}
		logger.Info("release step finished", "step", string(name), "duration", outcome.Duration)
	}

	run.FinishedAt = p.config.Clock.Now()
	duration := run.FinishedAt.Sub(run.StartedAt)
	if failure != nil {
		results.writeFailed(string(failure.Step), failure.Err.Error(), duration)
	} else {
		results.writeComplete(duration)
		logger.Info("release finished", "duration", duration)
	}

	p.record(ctx, run, logger)
	if failure != nil {
		return run, failure
	}
	return run, nil
}

func (p *Pipeline) openResultLog(logger *slog.Logger) *resultLog {
	if p.config.ResultLogPath == "" {
		return nil
	}
	results, err := newResultLog(p.config.ResultLogPath, p.config.Clock, logger)
	if err != nil {
		logger.Warn("result log disabled", "error", err)
		return nil
	}
	return results
}

func (p *Pipeline) record(ctx context.Context, run *Run, logger *slog.Logger) {
	if p.config.History == nil {
		return
	}
	if err := p.config.History.Add(ctx, HistoryRecord(run)); err != nil {
		logger.Warn("could not record release history", "error", err)
	}
}

// HistoryRecord converts a run into its persisted form.
func HistoryRecord(run *Run) history.Record {
	record := history.Record{
		ID:         run.ID.String(),
		Kind:       history.KindRelease,
		Profile:    string(run.Profile.Name),
		Revision:   run.Revision,
		Status:     history.StatusSucceeded,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Steps:      make([]history.Step, 0, len(run.Outcomes)),
	}
	for _, outcome := range run.Outcomes {
		status := history.StatusSucceeded
		if outcome.Status != StepOK {
			status = history.StatusFailed
			record.Status = history.StatusFailed
			record.FailedStep = string(outcome.Step)
			record.Error = outcome.Error
		}
		record.Steps = append(record.Steps, history.Step{
			Name:     string(outcome.Step),
			Status:   status,
			Duration: outcome.Duration,
			Error:    outcome.Error,
		})
	}
	return record
}
