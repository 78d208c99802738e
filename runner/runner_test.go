// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runner

import (
	"context"
	"io"
	"strings"
	gotesting "testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/config"
	"go.chromium.org/deqprunner/internal/deqp"
	"go.chromium.org/deqprunner/internal/device"
	"go.chromium.org/deqprunner/internal/fakedevice"
	"go.chromium.org/deqprunner/internal/instrumentation/instrumentationtest"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/logging/loggingtest"
	"go.chromium.org/deqprunner/internal/results/resultstest"
	"go.chromium.org/deqprunner/internal/runconfig"
)

func useFakeClock() (fclk *fakeclock.FakeClock, restore func()) {
	fclk = fakeclock.NewFakeClock(time.Unix(0, 0))
	orig := clk
	clk = fclk
	return fclk, func() { clk = orig }
}

type fakeReporter struct {
	resultstest.Recorder
	started []string
	ended   []time.Duration
}

func (r *fakeReporter) RunStarted(name string, numTests int) {
	r.started = append(r.started, name)
}

func (r *fakeReporter) RunEnded(elapsed time.Duration, metrics map[string]string) {
	r.ended = append(r.ended, elapsed)
}

var paths = []string{
	"dEQP-GLES3.info.vendor",
	"dEQP-GLES3.functional.color_clear.single_rgb",
	"dEQP-GLES3.functional.color_clear.single_rgba",
}

func loadConfig(t *gotesting.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(content))
	if err != nil {
		t.Fatal("Failed to parse config: ", err)
	}
	return cfg
}

const gles3Config = `
package: dEQP-GLES3
abi: arm64-v8a
tests:
  - dEQP-GLES3.info.vendor
  - dEQP-GLES3.functional.color_clear.single_rgb
  - dEQP-GLES3.functional.color_clear.single_rgba
`

// newDevice returns a GLES 3.0 device answering render config queries with
// supported and running test commands with stream.
func newDevice(supported string, stream func(ctx context.Context, cmd string, w io.Writer) error) *fakedevice.Device {
	return &fakedevice.Device{
		Props: map[string]string{deqp.GLESVersionProp: "196608"},
		Shell: func(ctx context.Context, cmd string) (string, error) {
			if strings.Contains(cmd, deqp.QueryInstrumentation) {
				return "INSTRUMENTATION_RESULT: Supported=" + supported + "\r\nINSTRUMENTATION_CODE: 0\r\n", nil
			}
			return "", nil
		},
		Stream: stream,
	}
}

// runAll reports a pass for the first two tests and a failure for the
// third.
func runAll(ctx context.Context, cmd string, w io.Writer) error {
	out := (&instrumentationtest.Output{}).BeginSession().Pass(paths[0]).Pass(paths[1]).
		Fail(paths[2], "wrong color").EndSession().Code(0)
	_, err := io.WriteString(w, out.String())
	return err
}

func TestRun(t *gotesting.T) {
	_, restore := useFakeClock()
	defer restore()
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)

	dev := newDevice("Yes", runAll)
	rep := &fakeReporter{}
	if err := Run(ctx, loadConfig(t, gles3Config), dev, rep); err != nil {
		t.Fatal("Run failed: ", err)
	}

	if diff := cmp.Diff(rep.started, []string{"arm64-v8a dEQP-GLES3"}); diff != "" {
		t.Errorf("Runs started mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(rep.ended, []time.Duration{0}); diff != "" {
		t.Errorf("Runs ended mismatch (-got +want):\n%s", diff)
	}
	got, err := rep.Outcomes()
	if err != nil {
		t.Fatal("Bad event sequence: ", err)
	}
	want := map[string]string{
		paths[0]: "pass",
		paths[1]: "pass",
		paths[2]: "fail: === with config " + runconfig.Default.ID() + " ===\nFail: wrong color",
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Outcomes mismatch (-got +want):\n%s", diff)
	}
}

func TestRunRecoversKilledLink(t *gotesting.T) {
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)

	calls := 0
	dev := newDevice("Yes", func(ctx context.Context, cmd string, w io.Writer) error {
		calls++
		if calls == 1 {
			return device.NewLinkKilledError(errors.New("EOF"), "adb disconnected")
		}
		return runAll(ctx, cmd, w)
	})
	cfg := loadConfig(t, gles3Config+"retry_cooldown: 2ms\nprocess_kill_wait: 1ms\n")

	rep := &fakeReporter{}
	if err := Run(ctx, cfg, dev, rep); err != nil {
		t.Fatal("Run failed: ", err)
	}
	if calls != 2 {
		t.Errorf("Ran %d commands; want 2", calls)
	}
	if len(rep.ended) != 1 || rep.ended[0] < 3*time.Millisecond {
		t.Errorf("Runs ended after %v; want one run of at least 3ms", rep.ended)
	}
	got, err := rep.Outcomes()
	if err != nil {
		t.Fatal("Bad event sequence: ", err)
	}
	if len(got) != len(paths) {
		t.Errorf("Got %d outcomes; want %d", len(got), len(paths))
	}
}

func TestRunUnsupportedGLES(t *gotesting.T) {
	_, restore := useFakeClock()
	defer restore()
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)

	dev := newDevice("Yes", runAll)
	dev.Props[deqp.GLESVersionProp] = "131072"
	rep := &fakeReporter{}
	if err := Run(ctx, loadConfig(t, gles3Config), dev, rep); err != nil {
		t.Fatal("Run failed: ", err)
	}

	got, err := rep.Outcomes()
	if err != nil {
		t.Fatal("Bad event sequence: ", err)
	}
	want := map[string]string{paths[0]: "pass", paths[1]: "pass", paths[2]: "pass"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Outcomes mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(dev.Calls(), []string{"prop:" + deqp.GLESVersionProp}); diff != "" {
		t.Errorf("Calls mismatch (-got +want):\n%s", diff)
	}
	if len(rep.ended) != 1 {
		t.Errorf("RunEnded called %d times; want 1", len(rep.ended))
	}
}

func TestRunSkipsUnsupportedConfig(t *gotesting.T) {
	_, restore := useFakeClock()
	defer restore()
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)

	dev := newDevice("No", runAll)
	rep := &fakeReporter{}
	if err := Run(ctx, loadConfig(t, gles3Config), dev, rep); err != nil {
		t.Fatal("Run failed: ", err)
	}
	for _, c := range dev.Calls() {
		if strings.HasPrefix(c, "stream:") {
			t.Errorf("Unexpected command %q", c)
		}
	}
	got, err := rep.Outcomes()
	if err != nil {
		t.Fatal("Bad event sequence: ", err)
	}
	want := map[string]string{paths[0]: "pass", paths[1]: "pass", paths[2]: "pass"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Outcomes mismatch (-got +want):\n%s", diff)
	}
}

func TestRunCapabilityQueryFailure(t *gotesting.T) {
	_, restore := useFakeClock()
	defer restore()
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)

	dev := newDevice("Maybe", runAll)
	rep := &fakeReporter{}
	if err := Run(ctx, loadConfig(t, gles3Config), dev, rep); err != nil {
		t.Fatal("Run failed: ", err)
	}
	if evs := rep.Events(); len(evs) != 0 {
		t.Errorf("Got events %v; want none", evs)
	}
	if len(rep.ended) != 1 {
		t.Errorf("RunEnded called %d times; want 1", len(rep.ended))
	}
}

func TestRunDeviceUnavailable(t *gotesting.T) {
	_, restore := useFakeClock()
	defer restore()
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)

	dev := newDevice("Yes", func(ctx context.Context, cmd string, w io.Writer) error {
		return device.NewLinkOpenError(errors.New("connection refused"), "adb failed")
	})
	rep := &fakeReporter{}
	err := Run(ctx, loadConfig(t, gles3Config), dev, rep)
	if !device.IsUnavailable(err) {
		t.Fatalf("Run returned %v; want device unavailable", err)
	}
	if len(rep.ended) != 0 {
		t.Errorf("RunEnded called %d times; want 0", len(rep.ended))
	}
}

func TestRunCanceled(t *gotesting.T) {
	_, restore := useFakeClock()
	defer restore()
	ctx, _ := loggingtest.Context(t, logging.LevelDebug)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	rep := &fakeReporter{}
	if err := Run(ctx, loadConfig(t, gles3Config), newDevice("Yes", runAll), rep); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v; want %v", err, context.Canceled)
	}
}
