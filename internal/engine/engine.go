// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package engine executes pending test instances in batches, bisecting
// batches that do not complete and recovering the device link when it
// fails.
package engine

import (
	"context"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/batch"
	"go.chromium.org/deqprunner/internal/device"
	"go.chromium.org/deqprunner/internal/instability"
	"go.chromium.org/deqprunner/internal/instrumentation"
	"go.chromium.org/deqprunner/internal/listener"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/metrics"
	"go.chromium.org/deqprunner/internal/results"
	"go.chromium.org/deqprunner/internal/runconfig"
	"go.chromium.org/deqprunner/internal/telemetry"
	"go.chromium.org/deqprunner/internal/testid"
)

// NotExecutableMessage is recorded for a test that could not be started.
const NotExecutableMessage = "Abort: Test cannot be executed"

// Executor runs batches on a device.
type Executor interface {
	// RunBatch runs the tests of b under b.Config as one command, feeding
	// the status records of its output to h. wellFormed is false if the
	// output could not be parsed or ended abnormally.
	//
	// A *device.LinkOpenError or *device.LinkKilledError is recovered from.
	// A context error ends the run. Any other error is fatal.
	RunBatch(ctx context.Context, b *batch.Batch, h instrumentation.Handler) (wellFormed bool, err error)
}

// CapabilityChecker answers whether the device can run a config.
type CapabilityChecker interface {
	// IsSupported returns whether cfg can run on the device. An error
	// aborts the run.
	IsSupported(ctx context.Context, cfg runconfig.Config) (bool, error)
}

// Recoverer restores the device link after failures.
type Recoverer interface {
	OnProgress()
	RecoverConnectionRefused(ctx context.Context) error
	RecoverComLinkKilled(ctx context.Context) error
}

// Options holds optional parameters of an Engine.
type Options struct {
	// BatchLimit is the batch size for stable tests.
	// instability.DefaultBatchLimit is used if it is not positive.
	BatchLimit int
	// CollectLogs makes the engine keep test logs for the sink.
	CollectLogs bool
	// RunID labels metrics of this run.
	RunID string
}

// Engine runs every remaining test of a results.Table.
//
// Engine is not safe for concurrent use.
type Engine struct {
	table    *results.Table
	listener *listener.Listener
	tracker  *instability.Tracker
	selector *batch.Selector
	exec     Executor
	caps     CapabilityChecker
	rec      Recoverer
	runID    string

	supported map[runconfig.Config]bool
	// forgiven holds tests retried without penalty after the link died
	// while they ran.
	forgiven map[testid.ID]bool
}

// New creates an Engine.
func New(table *results.Table, exec Executor, caps CapabilityChecker, rec Recoverer, opts Options) *Engine {
	tracker := instability.NewTracker()
	return &Engine{
		table:     table,
		listener:  listener.New(table, opts.CollectLogs),
		tracker:   tracker,
		selector:  batch.NewSelector(table, tracker, opts.BatchLimit),
		exec:      exec,
		caps:      caps,
		rec:       rec,
		runID:     opts.RunID,
		supported: make(map[runconfig.Config]bool),
		forgiven:  make(map[testid.ID]bool),
	}
}

// Tracker returns the instability ratings maintained by e.
func (e *Engine) Tracker() *instability.Tracker {
	return e.tracker
}

// RunAll runs batches until no test remains.
func (e *Engine) RunAll(ctx context.Context) error {
	for {
		b, err := e.selector.Select(e.table.Remaining(), nil)
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}
		if err := e.runBatch(ctx, b); err != nil {
			return err
		}
	}
}

// isSupported returns the cached capability answer for cfg.
func (e *Engine) isSupported(ctx context.Context, cfg runconfig.Config) (bool, error) {
	if ok, found := e.supported[cfg]; found {
		return ok, nil
	}
	ok, err := e.caps.IsSupported(ctx, cfg)
	metrics.RecordCapabilityQuery(ok, err)
	if err != nil {
		return false, err
	}
	e.supported[cfg] = ok
	return ok, nil
}

// runBatch adds the tests of b to the working set, then executes b or skips
// it if its config cannot run on the device.
func (e *Engine) runBatch(ctx context.Context, b *batch.Batch) error {
	e.listener.SetConfig(b.Config)
	for _, id := range b.Tests {
		e.table.Declare(id)
	}

	ok, err := e.isSupported(ctx, b.Config)
	if err != nil {
		return err
	}
	if !ok {
		logging.Infof(ctx, "Skipping %d tests: config %s not supported", len(b.Tests), b.Config.ID())
		metrics.RecordBatch(metrics.BatchSkipped, len(b.Tests))
		for _, id := range b.Tests {
			if err := e.table.Skip(ctx, id, b.Config); err != nil {
				return err
			}
		}
		return nil
	}
	return e.executeBatch(ctx, b)
}

// executeBatch runs b once, then splits whatever is still pending in two
// halves and runs each half the same way.
func (e *Engine) executeBatch(ctx context.Context, b *batch.Batch) error {
	if err := e.executeBatchOnce(ctx, b); err != nil {
		return err
	}

	pending := e.selector.Pending(b)
	mid := len(pending) / 2
	for _, half := range [][]testid.ID{pending[:mid], pending[mid:]} {
		for {
			sub, err := e.selector.Select(half, &b.Config)
			if err != nil {
				return err
			}
			if sub == nil {
				break
			}
			if err := e.executeBatch(ctx, sub); err != nil {
				return err
			}
		}
	}

	if n := e.selector.NumPending(b); n != 0 {
		return errors.Errorf("%d tests still pending after batch execution", n)
	}
	return nil
}

// executeBatchOnce makes one attempt at b. Every attempt either executes
// some instance or changes instability ratings, so repeated attempts
// converge.
func (e *Engine) executeBatchOnce(ctx context.Context, b *batch.Batch) error {
	if n := e.selector.NumPending(b); n != len(b.Tests) {
		return errors.Errorf("only %d of %d batch tests pending before execution", n, len(b.Tests))
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "run interrupted")
	}

	ctx, span := telemetry.StartBatch(ctx, b.Config.ID(), len(b.Tests))
	defer span.End()

	before := e.table.NumRemainingInstances()
	logging.Debugf(ctx, "Running %d tests with config %s", len(b.Tests), b.Config.ID())
	wellFormed, runErr := e.exec.RunBatch(ctx, b, e.listener)
	if runErr != nil {
		logging.Warningf(ctx, "Batch command failed: %v", runErr)
	}

	cur, open := e.listener.Current()
	if open || e.table.NumRemainingInstances() < before {
		e.rec.OnProgress()
	}

	var recErr error
	switch {
	case runErr != nil && (ctx.Err() != nil || errors.Is(runErr, context.Canceled)):
		metrics.RecordBatch(metrics.BatchInterrupted, len(b.Tests))
		return errors.Wrap(runErr, "run interrupted")
	case device.IsLinkOpen(runErr):
		metrics.RecordBatch(metrics.BatchLinkOpen, len(b.Tests))
		logging.Infof(ctx, "Recovering from command link open failure")
		recErr = e.runRecovery(ctx, "connection_refused", e.rec.RecoverConnectionRefused)
	case device.IsLinkKilled(runErr):
		metrics.RecordBatch(metrics.BatchLinkKilled, len(b.Tests))
		logging.Infof(ctx, "Recovering from command link killed")
		recErr = e.runRecovery(ctx, "link_killed", e.rec.RecoverComLinkKilled)
	case runErr != nil:
		return errors.Wrap(runErr, "batch command failed")
	case !wellFormed:
		metrics.RecordBatch(metrics.BatchMalformed, len(b.Tests))
		logging.Infof(ctx, "Parse not successful, attempting command link recovery")
		recErr = e.runRecovery(ctx, "link_killed", e.rec.RecoverComLinkKilled)
	default:
		metrics.RecordBatch(metrics.BatchCompleted, len(b.Tests))
	}
	if recErr != nil {
		return recErr
	}

	linkFailure := runErr != nil || !wellFormed
	if len(b.Tests) == 1 {
		if err := e.settleSingle(ctx, b, linkFailure); err != nil {
			return err
		}
	} else {
		if open {
			// The open test is blamed even if it is not part of b.
			e.recordInstability(cur)
		}
		for _, id := range b.Tests {
			switch {
			case open && id == cur:
			case e.table.IsPending(id, b.Config):
				// With a test open, only the open test is blamed.
				if !open {
					e.recordInstability(id)
				}
			default:
				e.clearInstability(id)
			}
		}
	}

	e.listener.EndBatch(ctx)
	metrics.SetRemainingInstances(e.runID, e.table.NumRemainingInstances())
	return nil
}

// settleSingle applies the outcome of an attempt at a single-test batch.
// A test that did not run is aborted, except that a link failure is
// forgiven while the test's rating is zero.
//
// A test may be forgiven for a link failure while it was running only once
// until it next completes, since an open test counts as progress and keeps
// the recovery ladder from escalating. Failures before the test started do
// not count as progress, so the ladder bounds their retries.
func (e *Engine) settleSingle(ctx context.Context, b *batch.Batch, linkFailure bool) error {
	id := b.Tests[0]
	_, open := e.listener.Current()
	executed := !open && !e.table.IsPending(id, b.Config)
	if executed {
		e.clearInstability(id)
		return nil
	}
	if linkFailure && e.tracker.Rating(id) == 0 {
		switch {
		case !open:
			logging.Infof(ctx, "Test %s hit a link failure before starting, retrying", id)
			return nil
		case !e.forgiven[id]:
			logging.Infof(ctx, "Test %s hit a link failure while running, retrying", id)
			e.forgiven[id] = true
			return nil
		}
	}

	e.recordInstability(id)
	if open {
		logging.Warningf(ctx, "Test %s started, but not completed", id)
		return e.listener.Abort(ctx, id, results.IncompleteMessage)
	}
	logging.Warningf(ctx, "Test %s could not start", id)
	return e.listener.Abort(ctx, id, NotExecutableMessage)
}

func (e *Engine) recordInstability(id testid.ID) {
	e.tracker.Record(id)
	metrics.RecordInstability()
}

func (e *Engine) clearInstability(id testid.ID) {
	e.tracker.Clear(id)
	delete(e.forgiven, id)
}

func (e *Engine) runRecovery(ctx context.Context, kind string, f func(context.Context) error) error {
	ctx, span := telemetry.StartRecovery(ctx, kind)
	defer span.End()
	return f(ctx)
}
