// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fakedevice provides a scripted device.Device for unit tests.
package fakedevice

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.chromium.org/deqprunner/internal/device"
)

// Device is a device.Device whose behavior is defined by handler functions.
// A nil handler succeeds with empty output. Every call is recorded.
type Device struct {
	// Shell handles ExecuteShellCommand.
	Shell func(ctx context.Context, cmd string) (string, error)
	// Stream handles StreamShellCommand.
	Stream func(ctx context.Context, cmd string, w io.Writer) error
	// Push handles PushString. Successful pushes are also kept in Files.
	Push func(ctx context.Context, content, path string) error
	// Props holds system properties. Missing properties read as "".
	Props map[string]string
	// RecoverFunc handles Recover.
	RecoverFunc func(ctx context.Context) error
	// RebootFunc handles Reboot.
	RebootFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []string
	files map[string]string
}

var _ device.Device = (*Device)(nil)

func (d *Device) record(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls, such as "shell:ps", "stream:am ...",
// "push:/sdcard/x", "prop:ro.x", "recover" and "reboot".
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// File returns the content last pushed to path.
func (d *Device) File(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.files[path]
	return s, ok
}

// ExecuteShellCommand implements device.Device.
func (d *Device) ExecuteShellCommand(ctx context.Context, cmd string) (string, error) {
	d.record("shell:%s", cmd)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.Shell == nil {
		return "", nil
	}
	return d.Shell(ctx, cmd)
}

// StreamShellCommand implements device.Device.
func (d *Device) StreamShellCommand(ctx context.Context, cmd string, w io.Writer, unresponsiveTimeout time.Duration) error {
	d.record("stream:%s", cmd)
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.Stream == nil {
		return nil
	}
	return d.Stream(ctx, cmd, w)
}

// PushString implements device.Device.
func (d *Device) PushString(ctx context.Context, content, path string) error {
	d.record("push:%s", path)
	if d.Push != nil {
		if err := d.Push(ctx, content, path); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.files == nil {
		d.files = make(map[string]string)
	}
	d.files[path] = content
	return nil
}

// Property implements device.Device.
func (d *Device) Property(ctx context.Context, name string) (string, error) {
	d.record("prop:%s", name)
	return d.Props[name], nil
}

// Recover implements device.Device.
func (d *Device) Recover(ctx context.Context) error {
	d.record("recover")
	if d.RecoverFunc == nil {
		return nil
	}
	return d.RecoverFunc(ctx)
}

// Reboot implements device.Device.
func (d *Device) Reboot(ctx context.Context) error {
	d.record("reboot")
	if d.RebootFunc == nil {
		return nil
	}
	return d.RebootFunc(ctx)
}

// Replies returns a shell handler answering successive calls with outputs in
// order. Calls beyond the end get the last output.
func Replies(outputs ...string) func(ctx context.Context, cmd string) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, cmd string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(outputs) == 0 {
			return "", nil
		}
		out := outputs[i]
		if i < len(outputs)-1 {
			i++
		}
		return out, nil
	}
}

// Sleep records a "sleep:<d>" call and returns immediately. It lets a Device
// double as a recovery.Sleeper so that sleeps appear in Calls in order.
func (d *Device) Sleep(ctx context.Context, dur time.Duration) error {
	d.record("sleep:%v", dur)
	return ctx.Err()
}
