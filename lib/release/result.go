// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pythonkr/pkdeploy/lib/clock"
)

// resultLog writes one JSON object per line while a run executes, so a
// run killed partway still leaves every finished step on disk. A nil
// *resultLog is a valid no-op log.
type resultLog struct {
	clock   clock.Clock
	logger  *slog.Logger
	file    *os.File
	encoder *json.Encoder
}

func newResultLog(path string, clock clock.Clock, logger *slog.Logger) (*resultLog, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening result log %s: %w", path, err)
	}
	return &resultLog{
		clock:   clock,
		logger:  logger,
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

func (r *resultLog) Close() error {
	if r == nil {
		return nil
	}
	return r.file.Close()
}

func (r *resultLog) writeStart(run *Run, stepCount int) {
	if r == nil {
		return
	}
	r.write(resultStartEntry{
		Type:      "start",
		ReleaseID: run.ID.String(),
		Profile:   string(run.Profile.Name),
		Revision:  run.Revision,
		StepCount: stepCount,
		Timestamp: r.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (r *resultLog) writeStep(index int, outcome StepOutcome) {
	if r == nil {
		return
	}
	r.write(resultStepEntry{
		Type:       "step",
		Index:      index,
		Name:       string(outcome.Step),
		Status:     outcome.Status,
		DurationMS: outcome.Duration.Milliseconds(),
		Error:      outcome.Error,
	})
}

func (r *resultLog) writeComplete(duration time.Duration) {
	if r == nil {
		return
	}
	r.write(resultCompleteEntry{
		Type:       "complete",
		Status:     "ok",
		DurationMS: duration.Milliseconds(),
	})
}

func (r *resultLog) writeFailed(failedStep, message string, duration time.Duration) {
	if r == nil {
		return
	}
	r.write(resultFailedEntry{
		Type:       "failed",
		Status:     "failed",
		Error:      message,
		FailedStep: failedStep,
		DurationMS: duration.Milliseconds(),
	})
}

func (r *resultLog) write(entry any) {
	if err := r.encoder.Encode(entry); err != nil {
		r.logger.Warn("failed to write result log entry", "error", err)
		return
	}
	if err := r.file.Sync(); err != nil {
		r.logger.Warn("failed to sync result log", "error", err)
	}
}

// resultStartEntry is the first line.
type resultStartEntry struct {
	Type      string `json:"type"`
	ReleaseID string `json:"release_id"`
	Profile   string `json:"profile"`
	Revision  string `json:"revision"`
	StepCount int    `json:"step_count"`
	Timestamp string `json:"timestamp"`
}

// resultStepEntry follows each executed step.
type resultStepEntry struct {
	Type       string     `json:"type"`
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// resultCompleteEntry is the last line of a successful run.
type resultCompleteEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

// resultFailedEntry is the last line of a failed run.
type resultFailedEntry struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	FailedStep string `json:"failed_step"`
	DurationMS int64  `json:"duration_ms"`
}
