// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pythonkr/pkdeploy/lib/clock"
	"github.com/pythonkr/pkdeploy/lib/pidfile"
)

// ErrTerminationTimeout describes a retired process that was still
// alive when the retirement bound elapsed. It is only ever logged;
// RetireCurrent does not return it.
var ErrTerminationTimeout = errors.New("process termination timeout")

// ErrProcessLaunch matches every error from Launch.
var ErrProcessLaunch = errors.New("process launch failed")

// State is a server instance's lifecycle state.
type State string

const (
	StateUnknown  State = "UNKNOWN"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateRetiring State = "RETIRING"
	StateStopped  State = "STOPPED"
)

// Outcome says how a retirement ended.
type Outcome string

const (
	// NothingToRetire: the registry was empty. Nothing was signalled.
	NothingToRetire Outcome = "nothing-to-retire"

	// Exited: the process exited within the bound.
	Exited Outcome = "exited"

	// AlreadyGone: the recorded process no longer existed when it was
	// signalled.
	AlreadyGone Outcome = "already-gone"

	// TimedOut: the process was still alive when the bound elapsed.
	TimedOut Outcome = "timed-out"
)

// Retirement is the result of RetireCurrent.
type Retirement struct {
	PID     int           `json:"pid,omitempty"`
	Outcome Outcome       `json:"outcome"`
	Waited  time.Duration `json:"waited"`
}

// ProcessTable is the controller's view of the operating system's
// processes.
type ProcessTable interface {
	// Signal delivers signal to pid. As with kill(2), a negative pid
	// addresses every member of process group -pid. A target that does
	// not exist yields an error matching unix.ESRCH.
	Signal(pid int, signal unix.Signal) error

	// Alive reports whether pid still exists as a live process owned
	// by the service's runtime user. A negative pid asks whether any
	// such process remains in process group -pid.
	Alive(pid int) (bool, error)
}

// Config holds a Controller's collaborators and bounds.
type Config struct {
	// Registry is the process marker. Required.
	Registry *pidfile.Registry

	// Processes defaults to the real process table for the current
	// user.
	Processes ProcessTable

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// PollInterval and PollAttempts bound both the retirement wait and
	// the readiness wait. Defaults: 1s and 30.
	PollInterval time.Duration
	PollAttempts int
}

// Controller retires and launches server instances for one deployment
// target. It is not safe for concurrent use; one orchestrator run owns
// a target at a time.
type Controller struct {
	registry  *pidfile.Registry
	processes ProcessTable
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	attempts  int

	// dial is replaced in tests.
	dial dialFunc

	state State
}

// New returns a Controller. It returns an error only when the default
// process table cannot be built.
func New(config Config) (*Controller, error) {
	if config.Registry == nil {
		return nil, errors.New("swap: Registry is required")
	}
	processes := config.Processes
	if processes == nil {
		table, err := SystemProcesses("")
		if err != nil {
			return nil, err
		}
		processes = table
	}
	controller := &Controller{
		registry:  config.Registry,
		processes: processes,
		clock:     config.Clock,
		logger:    config.Logger,
		interval:  config.PollInterval,
		attempts:  config.PollAttempts,
		dial:      dialTCP,
		state:     StateUnknown,
	}
	if controller.clock == nil {
		controller.clock = clock.Real()
	}
	if controller.logger == nil {
		controller.logger = slog.New(slog.DiscardHandler)
	}
	if controller.interval <= 0 {
		controller.interval = time.Second
	}
	if controller.attempts <= 0 {
		controller.attempts = 30
	}
	return controller, nil
}

// State returns the lifecycle state of the instance this controller
// last acted on.
func (c *Controller) State() State {
	return c.state
}

// RetireCurrent asks the registered server to stop and waits, within
// the poll bound, for it to exit. The registry is cleared as soon as
// the stop request is issued, whatever happens next.
//
// Launch starts every server as the leader of its own process group,
// and a launch command that does not exec leaves the real server as a
// child of the shell. While that group has live members the whole
// group is signalled and the retirement waits for all of it.
//
// A process that outlives the bound is not an error: the outcome is
// TimedOut and a warning carrying ErrTerminationTimeout is logged.
func (c *Controller) RetireCurrent(ctx context.Context) (Retirement, error) {
	pid, ok, err := c.registry.Read()
	if err != nil {
		return Retirement{}, fmt.Errorf("reading process registry: %w", err)
	}
	if !ok {
		c.logger.Info("no registered server to retire")
		return Retirement{Outcome: NothingToRetire}, nil
	}

	c.state = StateRetiring
	target := pid
	if group, err := c.processes.Alive(-pid); err == nil && group {
		target = -pid
	}
	logger := c.logger.With("pid", pid, "process_group", target < 0)
	logger.Info("retiring server")

	signalErr := c.processes.Signal(target, unix.SIGTERM)
	if clearErr := c.registry.Clear(); clearErr != nil {
		return Retirement{PID: pid}, errors.Join(signalErr, fmt.Errorf("clearing process registry: %w", clearErr))
	}
	if signalErr != nil {
		if errors.Is(signalErr, unix.ESRCH) {
			c.state = StateStopped
			logger.Info("registered server was already gone")
			return Retirement{PID: pid, Outcome: AlreadyGone}, nil
		}
		return Retirement{PID: pid}, fmt.Errorf("signalling pid %d: %w", pid, signalErr)
	}

	start := c.clock.Now()
	for attempt := 0; ; attempt++ {
		alive, err := c.processes.Alive(target)
		if err != nil {
			return Retirement{PID: pid}, fmt.Errorf("checking pid %d: %w", pid, err)
		}
		if !alive {
			waited := c.clock.Now().Sub(start)
			c.state = StateStopped
			logger.Info("server exited", "waited", waited)
			return Retirement{PID: pid, Outcome: Exited, Waited: waited}, nil
		}
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Retirement{PID: pid}, ctx.Err()
		case <-c.clock.After(c.interval):
		}
	}

	waited := c.clock.Now().Sub(start)
	c.state = StateStopped
	logger.Warn("retired server still running, continuing",
		"waited", waited,
		"error", fmt.Errorf("pid %d alive after %s: %w", pid, waited, ErrTerminationTimeout),
	)
	return Retirement{PID: pid, Outcome: TimedOut, Waited: waited}, nil
}

// Swap retires the current server and then launches spec.
func (c *Controller) Swap(ctx context.Context, spec LaunchSpec) (Retirement, Instance, error) {
	retirement, err := c.RetireCurrent(ctx)
	if err != nil {
		return retirement, Instance{}, fmt.Errorf("retiring current server: %w", err)
	}
	instance, err := c.Launch(ctx, spec)
	return retirement, instance, err
}
