// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package fakedevice

import (
	"bytes"
	"context"
	"io"
	gotesting "testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCalls(t *gotesting.T) {
	ctx := context.Background()
	d := &Device{
		Shell:  Replies("a", "b"),
		Props:  map[string]string{"ro.x": "1"},
		Stream: func(ctx context.Context, cmd string, w io.Writer) error { _, err := io.WriteString(w, "out"); return err },
	}

	var outs []string
	for i := 0; i < 3; i++ {
		out, err := d.ExecuteShellCommand(ctx, "ps")
		if err != nil {
			t.Fatal(err)
		}
		outs = append(outs, out)
	}
	if diff := cmp.Diff(outs, []string{"a", "b", "b"}); diff != "" {
		t.Errorf("Outputs mismatch (-got +want):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := d.StreamShellCommand(ctx, "am", &buf, time.Minute); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "out" {
		t.Errorf("Streamed %q; want %q", buf.String(), "out")
	}
	if err := d.PushString(ctx, "{a}", "/sdcard/f"); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.Property(ctx, "ro.x"); v != "1" {
		t.Errorf("Property = %q; want 1", v)
	}
	d.Recover(ctx)
	d.Reboot(ctx)
	d.Sleep(ctx, time.Second)

	want := []string{"shell:ps", "shell:ps", "shell:ps", "stream:am", "push:/sdcard/f", "prop:ro.x", "recover", "reboot", "sleep:1s"}
	if diff := cmp.Diff(d.Calls(), want); diff != "" {
		t.Errorf("Calls mismatch (-got +want):\n%s", diff)
	}
	if f, ok := d.File("/sdcard/f"); !ok || f != "{a}" {
		t.Errorf("File = %q, %v; want {a}, true", f, ok)
	}
}

func TestCanceled(t *gotesting.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Device{}
	if _, err := d.ExecuteShellCommand(ctx, "ps"); err == nil {
		t.Error("ExecuteShellCommand succeeded on canceled context")
	}
	if err := d.Sleep(ctx, time.Second); err == nil {
		t.Error("Sleep succeeded on canceled context")
	}
}
