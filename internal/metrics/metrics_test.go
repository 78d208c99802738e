// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package metrics

import (
	"errors"
	gotesting "testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBatch(t *gotesting.T) {
	before := testutil.ToFloat64(batchesTotal.WithLabelValues(BatchLinkKilled))
	RecordBatch(BatchLinkKilled, 4)
	RecordBatch(BatchLinkKilled, 2)
	if got := testutil.ToFloat64(batchesTotal.WithLabelValues(BatchLinkKilled)) - before; got != 2 {
		t.Errorf("batches_total{outcome=link_killed} grew by %v; want 2", got)
	}
}

func TestRecordCapabilityQuery(t *gotesting.T) {
	for _, tc := range []struct {
		supported bool
		err       error
		label     string
	}{
		{true, nil, "supported"},
		{false, nil, "unsupported"},
		{true, errors.New("bad output"), "error"},
	} {
		before := testutil.ToFloat64(capabilityQueriesTotal.WithLabelValues(tc.label))
		RecordCapabilityQuery(tc.supported, tc.err)
		if got := testutil.ToFloat64(capabilityQueriesTotal.WithLabelValues(tc.label)) - before; got != 1 {
			t.Errorf("RecordCapabilityQuery(%v, %v) grew %q by %v; want 1", tc.supported, tc.err, tc.label, got)
		}
	}
}

func TestGauges(t *gotesting.T) {
	SetRemainingInstances("run-1", 42)
	if got := testutil.ToFloat64(remainingInstances.WithLabelValues("run-1")); got != 42 {
		t.Errorf("remaining_instances = %v; want 42", got)
	}
	RecordRun("run-1", "dEQP-GLES3", 1500*time.Millisecond)
	if got := testutil.ToFloat64(runDuration.WithLabelValues("run-1", "dEQP-GLES3")); got != 1.5 {
		t.Errorf("run_duration_seconds = %v; want 1.5", got)
	}
}

func TestCounters(t *gotesting.T) {
	beforePass := testutil.ToFloat64(testsTotal.WithLabelValues("pass"))
	beforeFail := testutil.ToFloat64(testsTotal.WithLabelValues("fail"))
	RecordTest(true)
	RecordTest(false)
	RecordTest(false)
	if got := testutil.ToFloat64(testsTotal.WithLabelValues("pass")) - beforePass; got != 1 {
		t.Errorf("tests_total{result=pass} grew by %v; want 1", got)
	}
	if got := testutil.ToFloat64(testsTotal.WithLabelValues("fail")) - beforeFail; got != 2 {
		t.Errorf("tests_total{result=fail} grew by %v; want 2", got)
	}

	before := testutil.ToFloat64(recoveriesTotal.WithLabelValues("link_killed", "wait"))
	RecordRecovery("link_killed", "wait")
	if got := testutil.ToFloat64(recoveriesTotal.WithLabelValues("link_killed", "wait")) - before; got != 1 {
		t.Errorf("recoveries_total grew by %v; want 1", got)
	}

	beforeInst := testutil.ToFloat64(instabilityTotal)
	RecordInstability()
	if got := testutil.ToFloat64(instabilityTotal) - beforeInst; got != 1 {
		t.Errorf("instability_increments_total grew by %v; want 1", got)
	}
}
