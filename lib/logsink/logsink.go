// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logsink opens the access and error log sinks a profile names
// and routes structured log records between them.
//
// A sink location of "-" or "" is the console (stderr). Anything else
// is a file opened for appending, created with its parent directories
// if missing. Existing content is never truncated.
package logsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// Console is the sink location meaning stderr.
const Console = "-"

// Sink is an open log destination.
type Sink struct {
	// File is the underlying descriptor, suitable for handing to a
	// child process as its stdout or stderr.
	File *os.File

	location string
	owned    bool
}

// Open opens the sink at location.
func Open(location string) (*Sink, error) {
	if IsConsole(location) {
		return &Sink{File: os.Stderr, location: Console}, nil
	}
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory for %s: %w", location, err)
	}
	file, err := os.OpenFile(location, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log sink: %w", err)
	}
	return &Sink{File: file, location: location, owned: true}, nil
}

// IsConsole reports whether location names the console.
func IsConsole(location string) bool {
	return location == "" || location == Console
}

// Location returns the path the sink was opened from, or "-".
func (s *Sink) Location() string { return s.location }

func (s *Sink) Write(p []byte) (int, error) { return s.File.Write(p) }

// Close closes the sink's file. Closing the console sink is a no-op.
func (s *Sink) Close() error {
	if !s.owned {
		return nil
	}
	return s.File.Close()
}

// Pair is an access sink and an error sink opened together.
type Pair struct {
	Access *Sink
	Error  *Sink
}

// OpenPair opens both sinks. When both locations name the same file it
// is opened once.
func OpenPair(accessLocation, errorLocation string) (*Pair, error) {
	access, err := Open(accessLocation)
	if err != nil {
		return nil, err
	}
	shared := IsConsole(accessLocation) && IsConsole(errorLocation)
	if !IsConsole(accessLocation) && !IsConsole(errorLocation) {
		shared = filepath.Clean(accessLocation) == filepath.Clean(errorLocation)
	}
	if shared {
		return &Pair{Access: access, Error: &Sink{File: access.File, location: access.location}}, nil
	}
	errorSink, err := Open(errorLocation)
	if err != nil {
		access.Close()
		return nil, err
	}
	return &Pair{Access: access, Error: errorSink}, nil
}

// Close closes both sinks.
func (p *Pair) Close() error {
	return errors.Join(p.Access.Close(), p.Error.Close())
}

// Logger returns a logger whose Error-level records go to the error
// sink and everything else to the access sink.
func (p *Pair) Logger(level slog.Leveler) *slog.Logger {
	return slog.New(NewRouter(
		handlerFor(p.Access.File, level),
		handlerFor(p.Error.File, level),
	))
}

// handlerFor picks a text handler for terminals and JSON otherwise.
func handlerFor(file *os.File, level slog.Leveler) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(file.Fd())) {
		return slog.NewTextHandler(file, options)
	}
	return slog.NewJSONHandler(file, options)
}

// Router is a slog.Handler that sends records at slog.LevelError and
// above to one handler and all other records to another.
type Router struct {
	access slog.Handler
	errors slog.Handler
}

// NewRouter returns a Router over the two handlers.
func NewRouter(access, errors slog.Handler) *Router {
	return &Router{access: access, errors: errors}
}

func (r *Router) target(level slog.Level) slog.Handler {
	if level >= slog.LevelError {
		return r.errors
	}
	return r.access
}

// Enabled reports whether the handler that would receive a record at
// level accepts it.
func (r *Router) Enabled(ctx context.Context, level slog.Level) bool {
	return r.target(level).Enabled(ctx, level)
}

// Handle forwards record to the handler for its level.
func (r *Router) Handle(ctx context.Context, record slog.Record) error {
	return r.target(record.Level).Handle(ctx, record)
}

// WithAttrs applies attrs to both handlers.
func (r *Router) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Router{access: r.access.WithAttrs(attrs), errors: r.errors.WithAttrs(attrs)}
}

// WithGroup applies the group to both handlers.
func (r *Router) WithGroup(name string) slog.Handler {
	return &Router{access: r.access.WithGroup(name), errors: r.errors.WithGroup(name)}
}
