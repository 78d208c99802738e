// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package recovery

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/deqprunner/errors"
)

// Sleeper waits for a duration.
type Sleeper interface {
	// Sleep blocks for d or until ctx is done, whichever comes first. It
	// returns an error only if ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper is a Sleeper measuring time with a clock.Clock.
type ClockSleeper struct {
	clk clock.Clock
}

// NewClockSleeper returns a ClockSleeper. A nil clk means the real clock.
func NewClockSleeper(clk clock.Clock) *ClockSleeper {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &ClockSleeper{clk: clk}
}

// Sleep implements Sleeper.
func (s *ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	tm := s.clk.NewTimer(d)
	defer tm.Stop()

	select {
	case <-tm.C():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "sleep interrupted")
	}
}
