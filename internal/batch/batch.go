// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package batch groups pending test instances into batches that run in a
// single command.
package batch

import (
	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/instability"
	"go.chromium.org/deqprunner/internal/results"
	"go.chromium.org/deqprunner/internal/runconfig"
	"go.chromium.org/deqprunner/internal/testid"
)

// Batch is a set of test cases run together under one config.
type Batch struct {
	Config runconfig.Config
	Tests  []testid.ID
}

// Selector picks batches from the tests of a results.Table.
type Selector struct {
	table   *results.Table
	tracker *instability.Tracker
	limit   int
}

// NewSelector creates a Selector. limit is the batch size for tests with
// instability rating 0; it is halved for every rating point.
func NewSelector(table *results.Table, tracker *instability.Tracker, limit int) *Selector {
	if limit <= 0 {
		limit = instability.DefaultBatchLimit
	}
	return &Selector{table: table, tracker: tracker, limit: limit}
}

// Select picks a batch from pool. The first remaining test of pool leads the
// batch. If required is non-nil, only tests pending for it are considered and
// the batch runs under it; otherwise the batch runs under the first pending
// config of the leading test. Tests following the leader in pool are added
// while they are pending for the batch config and share the leader's
// instability rating, up to the rating's batch size limit.
//
// Select returns nil if pool has nothing left to run.
func (s *Selector) Select(pool []testid.ID, required *runconfig.Config) (*Batch, error) {
	lead := -1
	for i, id := range pool {
		if !s.table.IsRemaining(id) {
			continue
		}
		if required != nil && !s.table.IsPending(id, *required) {
			continue
		}
		lead = i
		break
	}
	if lead < 0 {
		return nil, nil
	}
	leader := pool[lead]

	var cfg runconfig.Config
	found := false
	if required != nil {
		cfg, found = *required, true
	} else {
		for _, c := range s.table.Configs(leader) {
			if s.table.IsPending(leader, c) {
				cfg, found = c, true
				break
			}
		}
	}
	if !found {
		return nil, errors.Errorf("remaining test %s has no pending config", leader)
	}

	rating := s.tracker.Rating(leader)
	limit := instability.BatchLimit(s.limit, rating)
	b := &Batch{Config: cfg, Tests: []testid.ID{leader}}
	for i, id := range pool {
		if len(b.Tests) >= limit {
			break
		}
		if i == lead || !s.table.IsPending(id, cfg) || s.tracker.Rating(id) != rating {
			continue
		}
		b.Tests = append(b.Tests, id)
	}
	return b, nil
}

// NumPending returns the number of tests in b still pending for b.Config.
func (s *Selector) NumPending(b *Batch) int {
	n := 0
	for _, id := range b.Tests {
		if s.table.IsPending(id, b.Config) {
			n++
		}
	}
	return n
}

// Pending returns the tests in b still pending for b.Config, in order.
func (s *Selector) Pending(b *Batch) []testid.ID {
	var ids []testid.ID
	for _, id := range b.Tests {
		if s.table.IsPending(id, b.Config) {
			ids = append(ids, id)
		}
	}
	return ids
}
