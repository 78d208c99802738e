// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package listener interprets dEQP status records and applies them to the
// pending result table.
package listener

import (
	"context"

	"go.chromium.org/deqprunner/internal/instrumentation"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/results"
	"go.chromium.org/deqprunner/internal/runconfig"
	"go.chromium.org/deqprunner/internal/testid"
)

// Status record keys.
const (
	KeyEventType       = "dEQP-EventType"
	KeyTestCasePath    = "dEQP-BeginTestCase-TestCasePath"
	KeyResultCode      = "dEQP-TestCaseResult-Code"
	KeyResultDetails   = "dEQP-TestCaseResult-Details"
	KeyTerminateReason = "dEQP-TerminateTestCase-Reason"
	KeyLogData         = "dEQP-TestLogData-Log"
)

// Event types.
const (
	EventBeginSession      = "BeginSession"
	EventSessionInfo       = "SessionInfo"
	EventEndSession        = "EndSession"
	EventBeginTestCase     = "BeginTestCase"
	EventEndTestCase       = "EndTestCase"
	EventTestCaseResult    = "TestCaseResult"
	EventTerminateTestCase = "TerminateTestCase"
	EventTestLogData       = "TestLogData"
)

// passCodes are the result codes that count as success.
var passCodes = map[string]bool{
	"Pass":                 true,
	"NotSupported":         true,
	"QualityWarning":       true,
	"CompatibilityWarning": true,
}

// failCodes are the result codes that count as failure.
var failCodes = map[string]bool{
	"Fail":          true,
	"ResourceError": true,
	"InternalError": true,
	"Crash":         true,
	"Timeout":       true,
}

// Listener tracks the test case currently running on the device and records
// results for it under the active run config.
type Listener struct {
	table       *results.Table
	collectLogs bool

	cfg       runconfig.Config
	cur       testid.ID
	hasCur    bool
	log       string
	gotResult bool
}

var _ instrumentation.Handler = (*Listener)(nil)

// New creates a Listener writing to table.
func New(table *results.Table, collectLogs bool) *Listener {
	return &Listener{table: table, collectLogs: collectLogs, cfg: runconfig.Default}
}

// SetConfig sets the run config that subsequent records apply to.
func (l *Listener) SetConfig(cfg runconfig.Config) {
	l.cfg = cfg
}

// Current returns the test case that began but has not ended yet.
func (l *Listener) Current() (testid.ID, bool) {
	return l.cur, l.hasCur
}

func (l *Listener) clearCurrent() {
	l.cur = testid.ID{}
	l.hasCur = false
}

// Abort fails the active instance of id with msg and completes it.
func (l *Listener) Abort(ctx context.Context, id testid.ID, msg string) error {
	err := l.table.Abort(ctx, id, l.cfg, msg)
	if l.hasCur && l.cur == id {
		l.clearCurrent()
	}
	return err
}

// EndBatch is called when a command stream ends. A test case left open is
// marked as not executed under the active config.
func (l *Listener) EndBatch(ctx context.Context) {
	if l.hasCur {
		logging.Infof(ctx, "Batch ended with test %s current", l.cur)
		if err := l.table.Restore(l.cur, l.cfg); err != nil {
			logging.Warningf(ctx, "Got unexpected internal state of %s: %v", l.cur, err)
		}
	}
	l.clearCurrent()
}

// HandleStatus applies one status record. It returns false if the record is
// malformed or could not be applied.
func (l *Listener) HandleStatus(ctx context.Context, rec instrumentation.Record) bool {
	ev, ok := rec[KeyEventType]
	if !ok {
		// Not an event.
		return true
	}
	switch ev {
	case EventBeginSession, EventSessionInfo, EventEndSession:
		return true
	case EventBeginTestCase:
		return l.beginTestCase(ctx, rec)
	case EventEndTestCase:
		return l.endTestCase(ctx)
	case EventTestCaseResult:
		return l.testCaseResult(ctx, rec)
	case EventTerminateTestCase:
		return l.terminateTestCase(ctx, rec)
	case EventTestLogData:
		data, ok := rec[KeyLogData]
		if !ok {
			return false
		}
		l.log += data
		return true
	}
	logging.Errorf(ctx, "Unknown event type (%s)", ev)
	return false
}

func (l *Listener) beginTestCase(ctx context.Context, rec instrumentation.Record) bool {
	ok := true
	if l.hasCur && l.table.Has(l.cur) {
		logging.Warningf(ctx, "Got unexpected start of %s, so aborting", l.cur)
		if err := l.Abort(ctx, l.cur, results.IncompleteMessage); err != nil {
			logging.Warningf(ctx, "Failed to abort %s: %v", l.cur, err)
			ok = false
		}
	}
	l.clearCurrent()
	l.log = ""
	l.gotResult = false

	path, found := rec[KeyTestCasePath]
	if !found {
		logging.Warningf(ctx, "Got no case path for test case begin event")
		return false
	}
	l.cur = testid.FromPath(path)
	l.hasCur = true
	if !l.table.Has(l.cur) {
		logging.Warningf(ctx, "Got unexpected start of %s", l.cur)
	}
	return ok
}

func (l *Listener) endTestCase(ctx context.Context) bool {
	defer l.clearCurrent()
	if !l.hasCur || !l.table.Has(l.cur) {
		logging.Warningf(ctx, "Got unexpected end of %s", l.cur)
		return true
	}
	if !l.gotResult {
		logging.Infof(ctx, "Test %s failed as it ended before receiving result", l.cur)
		if err := l.table.Fail(l.cur, l.cfg, results.IncompleteMessage); err != nil {
			return false
		}
	}
	if l.collectLogs && l.log != "" {
		if err := l.table.StoreLog(l.cur, l.cfg, l.log); err != nil {
			return false
		}
	}
	if err := l.table.Complete(ctx, l.cur, l.cfg); err != nil {
		logging.Warningf(ctx, "Failed to complete %s: %v", l.cur, err)
		return false
	}
	return true
}

func (l *Listener) testCaseResult(ctx context.Context, rec instrumentation.Record) bool {
	code, ok := rec[KeyResultCode]
	if !ok {
		return false
	}
	details := rec[KeyResultDetails]
	l.gotResult = true

	if !l.hasCur || !l.table.Has(l.cur) {
		logging.Warningf(ctx, "Got unexpected result for %s", l.cur)
		return true
	}
	if passCodes[code] {
		return true
	}
	if !failCodes[code] {
		logging.Errorf(ctx, "Got invalid result code %q for test %s", code, l.cur)
	}
	return l.table.Fail(l.cur, l.cfg, code+": "+details) == nil
}

func (l *Listener) terminateTestCase(ctx context.Context, rec instrumentation.Record) bool {
	defer func() {
		l.clearCurrent()
		l.gotResult = true
	}()
	if !l.hasCur || !l.table.Has(l.cur) {
		logging.Warningf(ctx, "Got unexpected termination of %s", l.cur)
		return true
	}
	if err := l.table.Fail(l.cur, l.cfg, "Terminated: "+rec[KeyTerminateReason]); err != nil {
		return false
	}
	if err := l.table.Complete(ctx, l.cur, l.cfg); err != nil {
		logging.Warningf(ctx, "Failed to complete %s: %v", l.cur, err)
		return false
	}
	return true
}
