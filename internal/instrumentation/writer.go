// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package instrumentation

import (
	"bytes"
	"context"
	"strings"
)

// LineProcessor is implemented by Parser and QueryParser.
type LineProcessor interface {
	ProcessLines(ctx context.Context, lines []string)
	Done(ctx context.Context)
}

// Writer is an io.Writer splitting raw command output into lines for a
// LineProcessor. Close must be called when the output ends.
type Writer struct {
	ctx  context.Context
	p    LineProcessor
	rest []byte
}

// NewWriter returns a Writer feeding p. Logs emitted by p go to ctx.
func NewWriter(ctx context.Context, p LineProcessor) *Writer {
	return &Writer{ctx: ctx, p: p}
}

// Write passes every complete line in b to the processor.
func (w *Writer) Write(b []byte) (int, error) {
	w.rest = append(w.rest, b...)
	i := bytes.LastIndexByte(w.rest, '\n')
	if i < 0 {
		return len(b), nil
	}
	w.p.ProcessLines(w.ctx, splitLines(string(w.rest[:i])))
	w.rest = append(w.rest[:0], w.rest[i+1:]...)
	return len(b), nil
}

// Close passes the trailing partial line, if any, and finishes the processor.
func (w *Writer) Close() error {
	if len(w.rest) > 0 {
		w.p.ProcessLines(w.ctx, splitLines(string(w.rest)))
		w.rest = nil
	}
	w.p.Done(w.ctx)
	return nil
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
