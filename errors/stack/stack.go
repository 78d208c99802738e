// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack captures and formats stack traces for the errors package.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	maxDepth = 8 // maximum number of stack frames to record

	ellipsis = "\t..." // trailing marker line added if stack trace is too long
)

// Stack holds a snapshot of program counters.
type Stack []uintptr

// New captures a stack trace. skip specifies the number of frames to skip from
// a stack trace. skip=0 records stack.New call as the innermost frame.
func New(skip int) Stack {
	pc := make([]uintptr, maxDepth+1)
	pc = pc[:runtime.Callers(skip+2, pc)]
	return Stack(pc)
}

// Frames returns up to maxDepth frames of s, innermost first, and whether
// frames were dropped.
func (s Stack) Frames() (frames []runtime.Frame, truncated bool) {
	cf := runtime.CallersFrames(s)
	for {
		f, more := cf.Next()
		frames = append(frames, f)
		if !more {
			return frames, false
		}
		if len(frames) >= maxDepth {
			return frames, true
		}
	}
}

// String formats a stack trace to a human-friendly text.
func (s Stack) String() string {
	frames, truncated := s.Frames()
	lines := make([]string, 0, len(frames)+1)
	for _, f := range frames {
		lines = append(lines, fmt.Sprintf("\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
	}
	if truncated {
		lines = append(lines, ellipsis)
	}
	return strings.Join(lines, "\n")
}
