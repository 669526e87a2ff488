// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package swap

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// SystemProcesses returns the real process table. Alive only counts
// processes owned by owner (a user name); an empty owner means the
// orchestrator's own user.
func SystemProcesses(owner string) (ProcessTable, error) {
	if owner == "" {
		return &systemTable{uid: os.Getuid()}, nil
	}
	account, err := user.Lookup(owner)
	if err != nil {
		return nil, fmt.Errorf("looking up service user: %w", err)
	}
	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return nil, fmt.Errorf("service user %s has non-numeric uid %q", owner, account.Uid)
	}
	return &systemTable{uid: uid}, nil
}

type systemTable struct {
	uid int
}

func (t *systemTable) Signal(pid int, signal unix.Signal) error {
	return unix.Kill(pid, signal)
}

// Alive prefers /proc, which exposes both the owner and zombie state.
// Without procfs it falls back to a null signal.
func (t *systemTable) Alive(pid int) (bool, error) {
	if pid < 0 && procfsMounted() {
		return t.groupAlive(-pid)
	}
	if pid > 0 {
		var stat unix.Stat_t
		err := unix.Stat("/proc/"+strconv.Itoa(pid), &stat)
		switch {
		case err == nil:
			if int(stat.Uid) != t.uid {
				return false, nil
			}
			return !defunct(pid), nil
		case errors.Is(err, unix.ENOENT) && procfsMounted():
			return false, nil
		}
	}

	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		// Exists, but not ours to signal: some other user's process.
		return false, nil
	default:
		return false, err
	}
}

// groupAlive scans /proc for a live member of process group pgid owned
// by the service user.
func (t *systemTable) groupAlive(pgid int) (bool, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false, fmt.Errorf("listing processes: %w", err)
	}
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		var stat unix.Stat_t
		if err := unix.Stat("/proc/"+entry.Name(), &stat); err != nil || int(stat.Uid) != t.uid {
			continue
		}
		state, group, ok := processStat(pid)
		if !ok || group != pgid || state == 'Z' || state == 'X' {
			continue
		}
		return true, nil
	}
	return false, nil
}

func procfsMounted() bool {
	_, err := os.Stat("/proc/self/stat")
	return err == nil
}

// defunct reports whether pid is a zombie waiting to be reaped. A
// zombie has already exited; it only lingers until its parent waits.
func defunct(pid int) bool {
	state, _, ok := processStat(pid)
	return ok && (state == 'Z' || state == 'X')
}

// processStat reads the state and process group of pid from
// /proc/<pid>/stat.
func processStat(pid int) (state byte, pgid int, ok bool) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0, 0, false
	}
	// The command name in field 2 may contain spaces and parentheses;
	// state, ppid and pgrp follow the last closing parenthesis.
	index := bytes.LastIndexByte(data, ')')
	if index < 0 {
		return 0, 0, false
	}
	fields := bytes.Fields(data[index+1:])
	if len(fields) < 3 || len(fields[0]) != 1 {
		return 0, 0, false
	}
	pgid, err = strconv.Atoi(string(fields[2]))
	if err != nil {
		return 0, 0, false
	}
	return fields[0][0], pgid, true
}
