// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package metrics exports Prometheus metrics about test execution.
//
// Metrics are registered with the default registry when the package is
// loaded. Callers that serve metrics expose prometheus.DefaultGatherer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace of all metrics of this package.
const Namespace = "deqp"

// Batch outcomes.
const (
	BatchCompleted   = "completed"
	BatchLinkOpen    = "link_open"
	BatchLinkKilled  = "link_killed"
	BatchMalformed   = "malformed"
	BatchSkipped     = "skipped"
	BatchInterrupted = "interrupted"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "batches_total",
		Help:      "Count of executed batch commands by outcome",
	}, []string{
		"outcome",
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "batch_size",
		Help:      "Number of test cases in executed batch commands",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
	})

	recoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "recoveries_total",
		Help:      "Count of recovery steps by failure kind and ladder state",
	}, []string{
		"kind",
		"state",
	})

	instabilityTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "instability_increments_total",
		Help:      "Count of test instability rating increments",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tests_total",
		Help:      "Count of reported test cases by result",
	}, []string{
		"result",
	})

	capabilityQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "capability_queries_total",
		Help:      "Count of run configuration capability queries by answer",
	}, []string{
		"answer",
	})

	remainingInstances = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "remaining_instances",
		Help:      "Number of test instances not executed yet",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of finished runs",
	}, []string{
		"run_id",
		"package",
	})
)

// RecordBatch counts one executed batch command of size test cases.
func RecordBatch(outcome string, size int) {
	batchesTotal.WithLabelValues(outcome).Inc()
	batchSize.Observe(float64(size))
}

// RecordRecovery counts one step of the recovery ladder.
func RecordRecovery(kind, state string) {
	recoveriesTotal.WithLabelValues(kind, state).Inc()
}

// RecordInstability counts one instability rating increment.
func RecordInstability() {
	instabilityTotal.Inc()
}

// RecordTest counts one reported test case.
func RecordTest(passed bool) {
	if passed {
		testsTotal.WithLabelValues("pass").Inc()
	} else {
		testsTotal.WithLabelValues("fail").Inc()
	}
}

// RecordCapabilityQuery counts one uncached capability query. A non-nil err
// is counted as "error" regardless of supported.
func RecordCapabilityQuery(supported bool, err error) {
	switch {
	case err != nil:
		capabilityQueriesTotal.WithLabelValues("error").Inc()
	case supported:
		capabilityQueriesTotal.WithLabelValues("supported").Inc()
	default:
		capabilityQueriesTotal.WithLabelValues("unsupported").Inc()
	}
}

// SetRemainingInstances publishes the number of instances left in a run.
func SetRemainingInstances(runID string, n int) {
	remainingInstances.WithLabelValues(runID).Set(float64(n))
}

// RecordRun publishes the duration of a finished run.
func RecordRun(runID, pkg string, d time.Duration) {
	runDuration.WithLabelValues(runID, pkg).Set(d.Seconds())
}
