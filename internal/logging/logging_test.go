// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/deqprunner/internal/logging"
)

type entry struct {
	Level logging.Level
	Msg   string
}

func recorder(entries *[]entry) *logging.FuncLogger {
	return logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		*entries = append(*entries, entry{level, msg})
	})
}

func TestContextLevels(t *testing.T) {
	var got []entry
	ctx := logging.AttachLogger(context.Background(), recorder(&got))

	logging.Debug(ctx, "a", 1)
	logging.Infof(ctx, "b%d", 2)
	logging.Warningf(ctx, "c%d", 3)
	logging.Errorf(ctx, "d%d", 4)

	want := []entry{
		{logging.LevelDebug, "a1"},
		{logging.LevelInfo, "b2"},
		{logging.LevelWarning, "c3"},
		{logging.LevelError, "d4"},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}

func TestAttachLoggerPropagation(t *testing.T) {
	var parent, child, isolated []entry
	ctx := logging.AttachLogger(context.Background(), recorder(&parent))
	childCtx := logging.AttachLogger(ctx, recorder(&child))
	isolatedCtx := logging.AttachLoggerNoPropagation(ctx, recorder(&isolated))

	logging.Info(childCtx, "to both")
	logging.Info(isolatedCtx, "to isolated")

	if diff := cmp.Diff(parent, []entry{{logging.LevelInfo, "to both"}}); diff != "" {
		t.Errorf("Parent logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(child, []entry{{logging.LevelInfo, "to both"}}); diff != "" {
		t.Errorf("Child logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(isolated, []entry{{logging.LevelInfo, "to isolated"}}); diff != "" {
		t.Errorf("Isolated logs mismatch (-got +want):\n%s", diff)
	}
}

func TestNoLogger(t *testing.T) {
	ctx := context.Background()
	if logging.HasLogger(ctx) {
		t.Error("HasLogger = true for a bare context")
	}
	// Must not panic.
	logging.Infof(ctx, "dropped")
}

func TestSetLogPrefix(t *testing.T) {
	var got []entry
	ctx := logging.AttachLogger(context.Background(), recorder(&got))
	ctx = logging.SetLogPrefix(ctx, "[run 1] ")
	logging.Info(ctx, "started\xff")

	if diff := cmp.Diff(got, []entry{{logging.LevelInfo, "[run 1] started"}}); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LevelInfo, false)
	logger.Log(logging.LevelDebug, time.Unix(0, 0), "hidden")
	logger.Log(logging.LevelInfo, time.Unix(0, 0), "shown")
	logger.Log(logging.LevelError, time.Unix(0, 0), "bad")

	if got, want := buf.String(), "I shown\nE bad\n"; got != want {
		t.Errorf("Output = %q; want %q", got, want)
	}
}

func TestWriterLoggerTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LevelDebug, true)
	logger.Log(logging.LevelWarning, time.UnixMilli(1500), "late")

	if got, want := buf.String(), "1970-01-01T00:00:01.500000Z W late\n"; got != want {
		t.Errorf("Output = %q; want %q", got, want)
	}
}
