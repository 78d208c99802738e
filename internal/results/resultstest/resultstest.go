// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package resultstest provides a results.Sink that records calls for unit
// tests.
package resultstest

import (
	"fmt"
	"sync"

	"go.chromium.org/deqprunner/internal/testid"
)

// Event is a single call made to a Recorder.
type Event struct {
	Kind string // "started", "log", "failed" or "ended"
	Test string // test case path
	Name string // log name, for "log" events
	Data string // log data or failure message
}

// Recorder is a results.Sink keeping every call in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// TestStarted records a "started" event.
func (r *Recorder) TestStarted(id testid.ID) { r.add(Event{Kind: "started", Test: id.Path()}) }

// TestLog records a "log" event.
func (r *Recorder) TestLog(id testid.ID, name, data string) {
	r.add(Event{Kind: "log", Test: id.Path(), Name: name, Data: data})
}

// TestFailed records a "failed" event.
func (r *Recorder) TestFailed(id testid.ID, msg string) {
	r.add(Event{Kind: "failed", Test: id.Path(), Data: msg})
}

// TestEnded records an "ended" event.
func (r *Recorder) TestEnded(id testid.ID, metrics map[string]string) {
	r.add(Event{Kind: "ended", Test: id.Path()})
}

// Events returns all events recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Outcomes summarizes the recorded events as a map from test case path to
// "pass" or "fail: <message>". It returns an error if a test was reported
// out of order or more than once.
func (r *Recorder) Outcomes() (map[string]string, error) {
	outcomes := make(map[string]string)
	open := ""
	var failure *string
	for _, e := range r.Events() {
		switch e.Kind {
		case "started":
			if open != "" {
				return nil, fmt.Errorf("%s started while %s open", e.Test, open)
			}
			if _, ok := outcomes[e.Test]; ok {
				return nil, fmt.Errorf("%s reported twice", e.Test)
			}
			open = e.Test
			failure = nil
		case "log", "failed":
			if e.Test != open {
				return nil, fmt.Errorf("%s event for %s while %s open", e.Kind, e.Test, open)
			}
			if e.Kind == "failed" {
				if failure != nil {
					return nil, fmt.Errorf("%s failed twice", e.Test)
				}
				msg := e.Data
				failure = &msg
			}
		case "ended":
			if e.Test != open {
				return nil, fmt.Errorf("%s ended while %s open", e.Test, open)
			}
			if failure != nil {
				outcomes[e.Test] = "fail: " + *failure
			} else {
				outcomes[e.Test] = "pass"
			}
			open = ""
		}
	}
	if open != "" {
		return nil, fmt.Errorf("%s never ended", open)
	}
	return outcomes, nil
}
