// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runner runs dEQP test packages on an Android device.
package runner

import (
	"context"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/config"
	"go.chromium.org/deqprunner/internal/deqp"
	"go.chromium.org/deqprunner/internal/device"
	"go.chromium.org/deqprunner/internal/engine"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/metrics"
	"go.chromium.org/deqprunner/internal/recovery"
	"go.chromium.org/deqprunner/internal/results"
	"go.chromium.org/deqprunner/internal/telemetry"
	"go.chromium.org/deqprunner/internal/testid"
)

// clk is used for run timing and recovery sleeps. Unit tests replace it.
var clk clock.Clock = clock.NewClock()

// Reporter receives the results of a run.
type Reporter interface {
	results.Sink
	// RunStarted is called once before any test result.
	RunStarted(name string, numTests int)
	// RunEnded is called once after the last test result of a run that
	// was not aborted.
	RunEnded(elapsed time.Duration, metrics map[string]string)
}

// meteredSink counts test outcomes while forwarding them.
type meteredSink struct {
	results.Sink
	failed map[testid.ID]bool
}

func (s *meteredSink) TestFailed(id testid.ID, msg string) {
	s.failed[id] = true
	s.Sink.TestFailed(id, msg)
}

func (s *meteredSink) TestEnded(id testid.ID, m map[string]string) {
	metrics.RecordTest(!s.failed[id])
	delete(s.failed, id)
	s.Sink.TestEnded(id, m)
}

// RunName returns the name runs of cfg are reported under.
func RunName(cfg *config.Config) string {
	return strings.TrimSpace(cfg.ABI + " " + cfg.Package.Name)
}

// Run runs the tests of cfg on dev and reports results to rep.
//
// Tests are left unreported if the device cannot answer a capability query,
// in which case Run still returns nil. Run returns an error if ctx is
// canceled or the device becomes unavailable.
func Run(ctx context.Context, cfg *config.Config, dev device.Device, rep Reporter) error {
	runID := telemetry.NewRunID()
	ctx = telemetry.SetPhase(ctx, "execute", telemetry.Run, runID)
	defer telemetry.EndPhase(ctx)
	ctx, span := telemetry.StartRun(ctx, runID, cfg.Package.Name, len(cfg.Tests))
	defer span.End()

	name := RunName(cfg)
	logging.Infof(ctx, "Starting run %s with %d tests", name, len(cfg.Tests))
	start := clk.Now()
	rep.RunStarted(name, len(cfg.Tests))
	sink := &meteredSink{Sink: rep, failed: make(map[testid.ID]bool)}

	if err := runTests(ctx, cfg, dev, sink, runID); err != nil {
		return err
	}

	elapsed := clk.Since(start)
	metrics.RecordRun(runID, cfg.Package.Name, elapsed)
	rep.RunEnded(elapsed, map[string]string{})
	logging.Infof(ctx, "Run %s finished in %v", name, elapsed)
	return nil
}

func runTests(ctx context.Context, cfg *config.Config, dev device.Device, sink results.Sink, runID string) error {
	pkg := cfg.Package
	if pkg.GLES {
		ok, err := deqp.IsSupportedGLES(ctx, dev, pkg.Major, pkg.Minor)
		if err != nil {
			return errors.Wrap(err, "failed to read GLES version")
		}
		if !ok {
			logging.Infof(ctx, "Device does not support OpenGL ES %d.%d, passing all tests", pkg.Major, pkg.Minor)
			for _, id := range cfg.Tests {
				sink.TestStarted(id)
				sink.TestEnded(id, map[string]string{})
			}
			return nil
		}
	}

	table := results.NewTable(sink, cfg.Tests, cfg.Instances, cfg.CollectLogs)
	exec := deqp.NewExecutor(dev, deqp.ExecutorOptions{
		ABI:                 cfg.ABI,
		CollectLogs:         cfg.CollectLogs,
		UnresponsiveTimeout: cfg.UnresponsiveTimeout,
	})
	caps := deqp.NewChecker(dev, cfg.ABI, pkg)
	rec := recovery.NewMachine(dev, recovery.NewClockSleeper(clk), cfg.Recovery)
	eng := engine.New(table, exec, caps, rec, engine.Options{
		BatchLimit:  cfg.BatchLimit,
		CollectLogs: cfg.CollectLogs,
		RunID:       runID,
	})

	if err := eng.RunAll(ctx); err != nil {
		if deqp.IsQueryError(err) {
			logging.Errorf(ctx, "Capability query failed, %d tests not executed: %v", table.NumRemaining(), err)
			return nil
		}
		return err
	}
	return nil
}
