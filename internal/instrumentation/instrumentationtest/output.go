// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package instrumentationtest builds dEQP instrumentation output for unit
// tests.
package instrumentationtest

import (
	"fmt"
	"strings"
)

// Output accumulates instrumentation output lines.
type Output struct {
	lines []string
}

// Status appends one status record made of key=value pairs and its status
// code line. Keys are given without the "dEQP-" prefix.
func (o *Output) Status(kvs ...string) *Output {
	if len(kvs)%2 != 0 {
		panic("odd number of key/value arguments")
	}
	for i := 0; i < len(kvs); i += 2 {
		o.lines = append(o.lines, fmt.Sprintf("INSTRUMENTATION_STATUS: dEQP-%s=%s", kvs[i], kvs[i+1]))
	}
	o.lines = append(o.lines, "INSTRUMENTATION_STATUS_CODE: 0")
	return o
}

// BeginSession appends the session preamble the test app emits.
func (o *Output) BeginSession() *Output {
	o.Status("SessionInfo-Name", "releaseName", "EventType", "SessionInfo", "SessionInfo-Value", "2014.x")
	o.Status("SessionInfo-Name", "releaseId", "EventType", "SessionInfo", "SessionInfo-Value", "0xcafebabe")
	o.Status("SessionInfo-Name", "targetName", "EventType", "SessionInfo", "SessionInfo-Value", "android")
	return o.Status("EventType", "BeginSession")
}

// BeginTest appends a BeginTestCase event for path.
func (o *Output) BeginTest(path string) *Output {
	return o.Status("EventType", "BeginTestCase", "BeginTestCase-TestCasePath", path)
}

// Result appends a TestCaseResult event.
func (o *Output) Result(code, details string) *Output {
	return o.Status("TestCaseResult-Details", details, "TestCaseResult-Code", code, "EventType", "TestCaseResult")
}

// Log appends a TestLogData event.
func (o *Output) Log(data string) *Output {
	return o.Status("TestLogData-Log", data, "EventType", "TestLogData")
}

// EndTest appends an EndTestCase event.
func (o *Output) EndTest() *Output {
	return o.Status("EventType", "EndTestCase")
}

// Terminate appends a TerminateTestCase event.
func (o *Output) Terminate(reason string) *Output {
	return o.Status("TerminateTestCase-Reason", reason, "EventType", "TerminateTestCase")
}

// Pass appends a complete passing test case.
func (o *Output) Pass(path string) *Output {
	return o.BeginTest(path).Result("Pass", "Pass").EndTest()
}

// Fail appends a complete failing test case.
func (o *Output) Fail(path, details string) *Output {
	return o.BeginTest(path).Result("Fail", details).EndTest()
}

// EndSession appends the session end event.
func (o *Output) EndSession() *Output {
	return o.Status("EventType", "EndSession")
}

// Code appends the instrumentation exit code line.
func (o *Output) Code(code int) *Output {
	o.lines = append(o.lines, fmt.Sprintf("INSTRUMENTATION_CODE: %d", code))
	return o
}

// Raw appends arbitrary lines.
func (o *Output) Raw(lines ...string) *Output {
	o.lines = append(o.lines, lines...)
	return o
}

// Lines returns the accumulated lines.
func (o *Output) Lines() []string {
	return append([]string(nil), o.lines...)
}

// String returns the accumulated output with "\r\n" line terminators, the
// way adb delivers it.
func (o *Output) String() string {
	return strings.Join(o.lines, "\r\n") + "\r\n"
}

// Session wraps a passing run of paths in a complete successful session.
func Session(paths ...string) *Output {
	o := (&Output{}).BeginSession()
	for _, p := range paths {
		o.Pass(p)
	}
	return o.EndSession().Code(0)
}
