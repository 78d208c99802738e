// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package loggingtest provides logging utilities for unit tests.
package loggingtest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.chromium.org/deqprunner/internal/logging"
)

// Logger is a logging.Logger that accumulates logs to an in-memory buffer,
// as well as emitting them as unit test logs.
type Logger struct {
	t     *testing.T
	level logging.Level

	mu   sync.Mutex
	logs []string
}

// NewLogger creates a new Logger that keeps logs at or above level.
func NewLogger(t *testing.T, level logging.Level) *Logger {
	return &Logger{t: t, level: level}
}

// Log gets called for a log event.
func (l *Logger) Log(level logging.Level, ts time.Time, msg string) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.t.Log(level.String() + " " + msg)
	if level >= l.level {
		l.logs = append(l.logs, msg)
	}
}

// Logs returns a list of logs received so far.
func (l *Logger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.logs...)
}

// String returns received logs as a newline-separated string.
func (l *Logger) String() string {
	return strings.Join(l.Logs(), "\n")
}

// Contains reports whether any received log contains substr.
func (l *Logger) Contains(substr string) bool {
	for _, log := range l.Logs() {
		if strings.Contains(log, substr) {
			return true
		}
	}
	return false
}

// Context returns a background context with a new Logger attached.
func Context(t *testing.T, level logging.Level) (context.Context, *Logger) {
	logger := NewLogger(t, level)
	return logging.AttachLogger(context.Background(), logger), logger
}
