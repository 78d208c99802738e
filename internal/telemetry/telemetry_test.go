// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package telemetry

import (
	"context"
	gotesting "testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/logging/loggingtest"
)

func useFakeClock() (fclk *fakeclock.FakeClock, restore func()) {
	fclk = fakeclock.NewFakeClock(time.Unix(0, 0))
	orig := clk
	clk = fclk
	return fclk, func() { clk = orig }
}

func TestPhases(t *gotesting.T) {
	fclk, restore := useFakeClock()
	defer restore()

	ctx, logger := loggingtest.Context(t, logging.LevelInfo)
	ctx = SetPhase(ctx, "execute", Run, "dEQP-GLES3")
	if p, ok := GetPhase(ctx); !ok || p.Name != "run:dEQP-GLES3 execute" {
		t.Fatalf("GetPhase = %+v, %v; want run:dEQP-GLES3 execute", p, ok)
	}
	logging.Info(ctx, "inside")

	fclk.Increment(3 * time.Second)
	ctx = SetPhase(ctx, "recover", "recovery", "link_killed")
	logging.Info(ctx, "climbing")
	ctx = EndPhase(ctx)
	logging.Info(ctx, "outside")

	want := []string{
		"[run:dEQP-GLES3 execute] inside",
		`Phase "run:dEQP-GLES3 execute" ended after 3s`,
		"[recovery:link_killed recover] climbing",
		`Phase "recovery:link_killed recover" ended after 0s`,
		"outside",
	}
	if diff := cmp.Diff(logger.Logs(), want); diff != "" {
		t.Errorf("Logs mismatch (-got +want):\n%s", diff)
	}
	if _, ok := GetPhase(ctx); ok {
		t.Error("Phase still set after EndPhase")
	}
}

func TestEndPhaseWithoutPhase(t *gotesting.T) {
	ctx, logger := loggingtest.Context(t, logging.LevelWarning)
	EndPhase(ctx)
	if !logger.Contains("No phase currently set") {
		t.Errorf("Missing warning: %q", logger.String())
	}
}

func TestNewRunID(t *gotesting.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Errorf("NewRunID returned %q twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewRunID = %q is not a UUID: %v", a, err)
	}
}

func TestSpans(t *gotesting.T) {
	// The global tracer provider is a no-op by default; spans must still be
	// safe to start and end.
	ctx, run := StartRun(context.Background(), "id", "dEQP-EGL", 3)
	ctx, b := StartBatch(ctx, "{}", 3)
	_, r := StartRecovery(ctx, "link_killed")
	r.End()
	b.End()
	run.End()
}
