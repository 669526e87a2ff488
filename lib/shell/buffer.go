// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"io"
	"strings"
	"sync"
)

// maxStderrTail bounds how much of a failed command's stderr is kept
// for its ExitError. Migration and build tools can be very chatty and
// the cause is almost always at the end.
const maxStderrTail = 4 << 10

// tailBuffer keeps the last maxStderrTail bytes written to it. Writes
// never fail.
type tailBuffer struct {
	data      []byte
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if excess := len(b.data) - maxStderrTail; excess > 0 {
		b.data = append(b.data[:0], b.data[excess:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) Len() int { return len(b.data) }

func (b *tailBuffer) String() string {
	text := strings.TrimSpace(string(b.data))
	if b.truncated && text != "" {
		return "..." + text
	}
	return text
}

type lockedWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writer.Write(p)
}
