// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package instability tracks how often test cases have been caught in a
// batch that crashed the device link, and derives batch sizes from it.
package instability

import "go.chromium.org/deqprunner/internal/testid"

// DefaultBatchLimit is the largest number of test cases run by one command.
const DefaultBatchLimit = 1000

// Tracker holds an instability rating per test case. Unknown tests have
// rating 0. Entries are never removed.
type Tracker struct {
	ratings map[testid.ID]int
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{ratings: make(map[testid.ID]int)}
}

// Rating returns the current rating of id.
func (t *Tracker) Rating(id testid.ID) int {
	return t.ratings[id]
}

// Record increases the rating of id by one.
func (t *Tracker) Record(id testid.ID) {
	t.ratings[id]++
}

// Clear resets the rating of id to zero.
func (t *Tracker) Clear(id testid.ID) {
	t.ratings[id] = 0
}

// BatchLimit returns the batch size cap for a leading test with the given
// rating: base halved once per rating point, but never less than one.
func BatchLimit(base, rating int) int {
	if rating >= 31 {
		return 1
	}
	if limit := base >> uint(rating); limit > 1 {
		return limit
	}
	return 1
}
