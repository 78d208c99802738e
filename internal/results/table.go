// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package results keeps per-test bookkeeping across all of a test's run
// configurations and reports each test exactly once.
package results

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/runconfig"
	"go.chromium.org/deqprunner/internal/testid"
)

// Messages recorded for instances that did not produce a result of their own.
const (
	IncompleteMessage = "Crash: Incomplete test log"
	SkippedMessage    = "Configuration skipped"
)

// configMessages is a map from configs to strings that remembers insertion
// order. Storing an existing config replaces its value in place.
type configMessages struct {
	order []runconfig.Config
	vals  map[runconfig.Config]string
}

func (m *configMessages) put(cfg runconfig.Config, s string) {
	if m.vals == nil {
		m.vals = make(map[runconfig.Config]string)
	}
	if _, ok := m.vals[cfg]; !ok {
		m.order = append(m.order, cfg)
	}
	m.vals[cfg] = s
}

// pendingResult accumulates the outcome of the instances of one test that
// are part of the current working set.
type pendingResult struct {
	allPassed bool
	logs      configMessages
	errors    configMessages
	remaining map[runconfig.Config]struct{}
}

// Table holds the tests that still need to be reported. A test stays in the
// table until all of its declared configs have been executed or skipped.
type Table struct {
	sink        Sink
	collectLogs bool

	order     []testid.ID // remaining tests in declaration order, possibly with stale entries
	remaining map[testid.ID]struct{}
	instances map[testid.ID][]runconfig.Config
	pending   map[testid.ID]*pendingResult
}

// NewTable creates a Table for tests. instances lists the configs declared
// for each test; a test with none gets runconfig.Default. Duplicate tests and
// duplicate configs are ignored.
func NewTable(sink Sink, tests []testid.ID, instances map[testid.ID][]runconfig.Config, collectLogs bool) *Table {
	t := &Table{
		sink:        sink,
		collectLogs: collectLogs,
		remaining:   make(map[testid.ID]struct{}, len(tests)),
		instances:   make(map[testid.ID][]runconfig.Config, len(tests)),
		pending:     make(map[testid.ID]*pendingResult),
	}
	for _, id := range tests {
		if _, ok := t.remaining[id]; ok {
			continue
		}
		t.remaining[id] = struct{}{}
		t.order = append(t.order, id)

		var cfgs []runconfig.Config
		for _, cfg := range instances[id] {
			if !slices.Contains(cfgs, cfg) {
				cfgs = append(cfgs, cfg)
			}
		}
		if len(cfgs) == 0 {
			cfgs = []runconfig.Config{runconfig.Default}
		}
		t.instances[id] = cfgs
	}
	return t
}

// Remaining returns the tests not yet reported, in declaration order.
func (t *Table) Remaining() []testid.ID {
	if len(t.order) > 2*len(t.remaining) {
		t.order = slices.DeleteFunc(t.order, func(id testid.ID) bool { return !t.IsRemaining(id) })
	}
	ids := make([]testid.ID, 0, len(t.remaining))
	for _, id := range t.order {
		if t.IsRemaining(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// NumRemaining returns the number of tests not yet reported.
func (t *Table) NumRemaining() int {
	return len(t.remaining)
}

// IsRemaining reports whether id has not been reported yet.
func (t *Table) IsRemaining(id testid.ID) bool {
	_, ok := t.remaining[id]
	return ok
}

// Configs returns the configs declared for id, in declaration order.
func (t *Table) Configs(id testid.ID) []runconfig.Config {
	return t.instances[id]
}

// Declare adds id to the working set with all of its declared configs still
// to run. Declaring a test already in the working set does nothing.
func (t *Table) Declare(id testid.ID) {
	if _, ok := t.pending[id]; ok {
		return
	}
	r := &pendingResult{
		allPassed: true,
		remaining: make(map[runconfig.Config]struct{}),
	}
	for _, cfg := range t.instances[id] {
		r.remaining[cfg] = struct{}{}
	}
	t.pending[id] = r
}

// Has reports whether id is in the working set.
func (t *Table) Has(id testid.ID) bool {
	_, ok := t.pending[id]
	return ok
}

// IsPending reports whether the instance of id under cfg has not run yet.
func (t *Table) IsPending(id testid.ID, cfg runconfig.Config) bool {
	if r, ok := t.pending[id]; ok {
		_, ok := r.remaining[cfg]
		return ok
	}
	if !t.IsRemaining(id) {
		return false
	}
	return slices.Contains(t.instances[id], cfg)
}

// NumRemainingInstances returns the number of test instances that have not
// run yet across all remaining tests.
func (t *Table) NumRemainingInstances() int {
	n := 0
	for id := range t.remaining {
		if r, ok := t.pending[id]; ok {
			n += len(r.remaining)
		} else {
			n += len(t.instances[id])
		}
	}
	return n
}

func (t *Table) get(id testid.ID) (*pendingResult, error) {
	r, ok := t.pending[id]
	if !ok {
		return nil, errors.Errorf("%s is not in the working set", id)
	}
	return r, nil
}

// Fail marks the instance of id under cfg as failed with msg.
// The instance stays pending until Complete is called.
func (t *Table) Fail(id testid.ID, cfg runconfig.Config, msg string) error {
	r, err := t.get(id)
	if err != nil {
		return err
	}
	r.allPassed = false
	r.errors.put(cfg, msg)
	return nil
}

// StoreLog keeps the test log of the instance of id under cfg.
func (t *Table) StoreLog(id testid.ID, cfg runconfig.Config, log string) error {
	r, err := t.get(id)
	if err != nil {
		return err
	}
	r.logs.put(cfg, log)
	return nil
}

// Complete marks the instance of id under cfg as executed, and reports id
// once all of its instances are executed. Completing an instance that is not
// pending only logs a warning.
func (t *Table) Complete(ctx context.Context, id testid.ID, cfg runconfig.Config) error {
	r, err := t.get(id)
	if err != nil {
		return err
	}
	if _, ok := r.remaining[cfg]; !ok {
		logging.Warningf(ctx, "Instance %s of %s completed twice", cfg.ID(), id)
		return nil
	}
	delete(r.remaining, cfg)
	if len(r.remaining) == 0 {
		return t.finalize(ctx, id)
	}
	return nil
}

// Abort records msg as the failure of the instance of id under cfg and
// completes it.
func (t *Table) Abort(ctx context.Context, id testid.ID, cfg runconfig.Config, msg string) error {
	logging.Infof(ctx, "Test %s aborted with message %s", id, msg)
	if err := t.Fail(id, cfg, msg); err != nil {
		return err
	}
	return t.Complete(ctx, id, cfg)
}

// Skip completes the instance of id under cfg without executing it. A
// skipped instance does not make the test fail on its own.
func (t *Table) Skip(ctx context.Context, id testid.ID, cfg runconfig.Config) error {
	r, err := t.get(id)
	if err != nil {
		return err
	}
	r.errors.put(cfg, SkippedMessage)
	return t.Complete(ctx, id, cfg)
}

// Restore marks the instance of id under cfg as not executed again.
func (t *Table) Restore(id testid.ID, cfg runconfig.Config) error {
	r, err := t.get(id)
	if err != nil {
		return err
	}
	r.remaining[cfg] = struct{}{}
	return nil
}

// finalize reports id to the sink and forgets it.
func (t *Table) finalize(ctx context.Context, id testid.ID) error {
	if !t.IsRemaining(id) {
		logging.Warningf(ctx, "Finalization for non-pending case %s", id)
		return errors.Errorf("%s finalized twice", id)
	}
	r := t.pending[id]
	delete(t.pending, id)
	delete(t.remaining, id)

	t.sink.TestStarted(id)
	if t.collectLogs {
		for _, cfg := range r.logs.order {
			t.sink.TestLog(id, fmt.Sprintf("%s.%s@%s", id.Class, id.Name, cfg.ID()), r.logs.vals[cfg])
		}
	}
	if !r.allPassed {
		blocks := make([]string, 0, len(r.errors.order))
		for _, cfg := range r.errors.order {
			blocks = append(blocks, fmt.Sprintf("=== with config %s ===\n%s", cfg.ID(), r.errors.vals[cfg]))
		}
		t.sink.TestFailed(id, strings.Join(blocks, "\n"))
	}
	t.sink.TestEnded(id, map[string]string{})
	return nil
}
