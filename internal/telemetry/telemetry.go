// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package telemetry tracks run phases and emits trace spans for test
// execution.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"go.chromium.org/deqprunner/internal/logging"
)

// clk is the clock phases are timed with. Unit tests replace it.
var clk = clock.NewClock()

// PhaseInfo tracks metadata for a phase.
type PhaseInfo struct {
	Name  string
	Start time.Time
}

type phaseKey struct{}

// Run is the entity type of run phases.
const Run = "run"

// GetPhase returns the phase currently set on ctx.
func GetPhase(ctx context.Context) (PhaseInfo, bool) {
	p, ok := ctx.Value(phaseKey{}).(PhaseInfo)
	if !ok || p == (PhaseInfo{}) {
		return PhaseInfo{}, false
	}
	return p, true
}

// SetPhase starts a new phase named "<entityType>:<entityName> <phaseName>"
// on ctx, ending the current phase if any. Logs emitted via the returned
// context are prefixed with the phase name. Passing "" for phaseName or
// entityName only ends the current phase.
func SetPhase(ctx context.Context, phaseName, entityType, entityName string) context.Context {
	if _, ok := GetPhase(ctx); ok {
		ctx = EndPhase(ctx)
	}
	if phaseName == "" || entityName == "" {
		return ctx
	}
	name := fmt.Sprintf("%s:%s %s", entityType, entityName, phaseName)
	ctx = context.WithValue(ctx, phaseKey{}, PhaseInfo{Name: name, Start: clk.Now().UTC()})
	return logging.SetLogPrefix(ctx, fmt.Sprintf("[%s] ", name))
}

// EndPhase ends the phase set on ctx and logs its duration.
func EndPhase(ctx context.Context) context.Context {
	p, ok := GetPhase(ctx)
	if !ok {
		logging.Warningf(ctx, "No phase currently set to end")
		return ctx
	}
	ctx = context.WithValue(ctx, phaseKey{}, PhaseInfo{})
	ctx = logging.SetLogPrefix(ctx, "")
	logging.Infof(ctx, "Phase %q ended after %v", p.Name, clk.Since(p.Start))
	return ctx
}

// NewRunID returns a fresh unique run ID.
func NewRunID() string {
	return uuid.New().String()
}

func tracer() trace.Tracer {
	return otel.Tracer("deqp runner")
}

// StartRun starts the span covering a whole run.
func StartRun(ctx context.Context, runID, pkg string, numTests int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "run "+pkg, trace.WithAttributes(
		attribute.String("deqp.run_id", runID),
		attribute.String("deqp.package", pkg),
		attribute.Int("deqp.num_tests", numTests),
	))
}

// StartBatch starts the span covering one batch command.
func StartBatch(ctx context.Context, configID string, size int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "batch", trace.WithAttributes(
		attribute.String("deqp.config", configID),
		attribute.Int("deqp.batch_size", size),
	))
}

// StartRecovery starts the span covering one recovery attempt.
func StartRecovery(ctx context.Context, kind string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "recovery "+kind)
}
