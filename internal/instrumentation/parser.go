// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package instrumentation decodes the output of "am instrument" into status
// records.
//
// A value continued over several lines keeps the line breaks between them,
// so multi-line test logs arrive as they were written.
package instrumentation

import (
	"context"
	"strconv"
	"strings"

	"go.chromium.org/deqprunner/internal/logging"
)

// Line prefixes emitted by the instrumentation framework.
const (
	statusCodePrefix = "INSTRUMENTATION_STATUS_CODE: "
	statusPrefix     = "INSTRUMENTATION_STATUS: "
	deqpStatusPrefix = statusPrefix + "dEQP-"
	resultPrefix     = "INSTRUMENTATION_RESULT: "
	codePrefix       = "INSTRUMENTATION_CODE: "
)

// Record is one status message: a map from keys such as "dEQP-EventType" to
// values.
type Record map[string]string

// Handler consumes status records. HandleStatus returns false if the record
// was malformed.
type Handler interface {
	HandleStatus(ctx context.Context, rec Record) bool
}

// Parser turns instrumentation output lines into records for a Handler.
type Parser struct {
	h Handler

	rec     Record
	curName string
	curVal  string
	inValue bool

	code      int
	gotCode   bool
	parseFail bool
}

// NewParser creates a Parser feeding h.
func NewParser(h Handler) *Parser {
	return &Parser{h: h}
}

func (p *Parser) flushValue() {
	if p.inValue {
		p.rec[p.curName] = p.curVal
		p.curName, p.curVal, p.inValue = "", "", false
	}
}

// ProcessLines consumes complete output lines without line terminators.
// A malformed line marks the parse as failed and drops the rest of lines.
func (p *Parser) ProcessLines(ctx context.Context, lines []string) {
	for _, line := range lines {
		if p.rec == nil {
			p.rec = make(Record)
		}
		switch {
		case strings.HasPrefix(line, statusCodePrefix):
			p.flushValue()
			if !p.h.HandleStatus(ctx, p.rec) {
				p.parseFail = true
			}
			p.rec = nil
		case strings.HasPrefix(line, deqpStatusPrefix):
			p.flushValue()
			eq := strings.IndexByte(line, '=')
			if eq < 0 {
				logging.Errorf(ctx, "Line does not contain value. Logcat interrupted? (%s)", line)
				p.parseFail = true
				return
			}
			p.curName = line[len(statusPrefix):eq]
			p.curVal = line[eq+1:]
			p.inValue = true
		case strings.HasPrefix(line, codePrefix):
			code, err := strconv.Atoi(strings.TrimSpace(line[len(codePrefix):]))
			if err != nil {
				logging.Errorf(ctx, "Instrumentation code format unexpected: %q", line)
				p.parseFail = true
				return
			}
			p.code = code
			p.gotCode = true
		case p.inValue:
			p.curVal += "\n" + line
		}
	}
}

// Done flushes the record in progress. It must be called once after the
// output ends.
func (p *Parser) Done(ctx context.Context) {
	if p.rec == nil && p.inValue {
		p.rec = make(Record)
	}
	p.flushValue()
	if p.rec != nil {
		if !p.h.HandleStatus(ctx, p.rec) {
			p.parseFail = true
		}
		p.rec = nil
	}
}

// WasSuccessful reports whether the instrumentation exited normally and its
// output was well formed.
func (p *Parser) WasSuccessful() bool {
	return p.gotCode && !p.parseFail
}

// ResultCode returns the instrumentation exit code.
func (p *Parser) ResultCode() int {
	return p.code
}

// QueryParser collects the INSTRUMENTATION_RESULT pairs of a platform query.
type QueryParser struct {
	results map[string]string
	code    int
	gotCode bool
}

// NewQueryParser creates an empty QueryParser.
func NewQueryParser() *QueryParser {
	return &QueryParser{results: make(map[string]string)}
}

// ProcessLines consumes complete output lines without line terminators.
func (p *QueryParser) ProcessLines(ctx context.Context, lines []string) {
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, resultPrefix):
			k, v, ok := strings.Cut(line[len(resultPrefix):], "=")
			if !ok {
				logging.Warningf(ctx, "Instrumentation result format unexpected: %q", line)
				continue
			}
			p.results[k] = v
		case strings.HasPrefix(line, codePrefix):
			code, err := strconv.Atoi(strings.TrimSpace(line[len(codePrefix):]))
			if err != nil {
				logging.Warningf(ctx, "Instrumentation code format unexpected: %q", line)
				continue
			}
			p.code = code
			p.gotCode = true
		}
	}
}

// Done implements LineProcessor. QueryParser keeps no partial state.
func (p *QueryParser) Done(ctx context.Context) {}

// WasSuccessful reports whether the query exited normally.
func (p *QueryParser) WasSuccessful() bool {
	return p.gotCode
}

// ResultCode returns the query exit code.
func (p *QueryParser) ResultCode() int {
	return p.code
}

// Results returns the collected result pairs.
func (p *QueryParser) Results() map[string]string {
	return p.results
}
