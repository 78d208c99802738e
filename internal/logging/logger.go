// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package logging provides context-attached logging for the runner.
//
// Components never hold a logger. They log through the context passed to
// them, and whoever owns the run decides where logs go by attaching a Logger
// with AttachLogger.
package logging

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Level indicates a logging level. A larger level value means a log is more
// important.
type Level int

const (
	// LevelDebug represents the DEBUG level.
	LevelDebug Level = iota
	// LevelInfo represents the INFO level.
	LevelInfo
	// LevelWarning represents the WARNING level.
	LevelWarning
	// LevelError represents the ERROR level.
	LevelError
)

// String returns a short tag for the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarning:
		return "W"
	case LevelError:
		return "E"
	default:
		return fmt.Sprintf("L%d", int(l))
	}
}

// Logger defines the interface for loggers that consume logs sent via
// context.Context.
type Logger interface {
	// Log gets called for a log entry.
	Log(level Level, ts time.Time, msg string)
}

// MultiLogger is a Logger that copies logs to multiple underlying loggers.
type MultiLogger struct {
	mu      sync.Mutex
	loggers []Logger
}

// NewMultiLogger creates a new MultiLogger with a specified initial set of
// underlying loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log copies a log to the current underlying loggers.
func (ml *MultiLogger) Log(level Level, ts time.Time, msg string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	for _, logger := range ml.loggers {
		logger.Log(level, ts, msg)
	}
}

// AddLogger adds a logger to the set of underlying loggers.
func (ml *MultiLogger) AddLogger(logger Logger) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.loggers = append(ml.loggers, logger)
}

// FuncLogger is a Logger that calls a function.
//
// All calls to the underlying function are synchronized.
type FuncLogger struct {
	f  func(level Level, ts time.Time, msg string)
	mu sync.Mutex
}

// NewFuncLogger creates a new FuncLogger.
func NewFuncLogger(f func(level Level, ts time.Time, msg string)) *FuncLogger {
	return &FuncLogger{f: f}
}

// Log calls the underlying function.
func (l *FuncLogger) Log(level Level, ts time.Time, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f(level, ts, msg)
}

// WriterLogger is a Logger that writes logs at or above a minimum level to
// an io.Writer, one line per log.
type WriterLogger struct {
	level     Level
	timestamp bool

	mu sync.Mutex
	w  io.Writer
}

// NewWriterLogger creates a new WriterLogger.
//
// If timestamp is true, a UTC timestamp is prepended to each line.
func NewWriterLogger(w io.Writer, level Level, timestamp bool) *WriterLogger {
	return &WriterLogger{level: level, timestamp: timestamp, w: w}
}

// Log writes a log line.
func (l *WriterLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timestamp {
		fmt.Fprintf(l.w, "%s %s %s\n", ts.UTC().Format("2006-01-02T15:04:05.000000Z"), level, msg)
		return
	}
	fmt.Fprintf(l.w, "%s %s\n", level, msg)
}
