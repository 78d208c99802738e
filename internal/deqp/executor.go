// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deqp

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.chromium.org/deqprunner/internal/batch"
	"go.chromium.org/deqprunner/internal/caselist"
	"go.chromium.org/deqprunner/internal/device"
	"go.chromium.org/deqprunner/internal/engine"
	"go.chromium.org/deqprunner/internal/instrumentation"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/shutil"
)

// Device paths and instrumentation names used by the test app.
const (
	CaseListFile         = "/sdcard/dEQP-TestCaseList.txt"
	LogFile              = "/sdcard/TestLog.qpa"
	TestInstrumentation  = "com.drawelements.deqp/com.drawelements.deqp.testercore.DeqpInstrumentation"
	QueryInstrumentation = "com.drawelements.deqp/com.drawelements.deqp.platformutil.DeqpPlatformCapabilityQueryInstrumentation"
)

// DefaultUnresponsiveTimeout is the longest a test command may go without
// output.
const DefaultUnresponsiveTimeout = 10 * time.Minute

// ExecutorOptions holds parameters of an Executor.
type ExecutorOptions struct {
	// ABI selects the native ABI of the test app. It may be empty.
	ABI string
	// CollectLogs asks the test app to ship test logs.
	CollectLogs bool
	// UnresponsiveTimeout defaults to DefaultUnresponsiveTimeout.
	UnresponsiveTimeout time.Duration
}

// Executor runs batches through the dEQP test instrumentation.
type Executor struct {
	dev  device.Device
	opts ExecutorOptions
}

var _ engine.Executor = (*Executor)(nil)

// NewExecutor creates an Executor running commands on dev.
func NewExecutor(dev device.Device, opts ExecutorOptions) *Executor {
	if opts.UnresponsiveTimeout <= 0 {
		opts.UnresponsiveTimeout = DefaultUnresponsiveTimeout
	}
	return &Executor{dev: dev, opts: opts}
}

// abiArgs returns the "am instrument" arguments selecting abi.
func abiArgs(abi string) []string {
	if abi == "" {
		return nil
	}
	return []string{"--abi", abi}
}

// Command returns the shell command running b.
func (e *Executor) Command(b *batch.Batch) string {
	args := []string{"--deqp-caselist-file=" + CaseListFile, b.Config.CmdLine()}
	if !e.opts.CollectLogs {
		// Images are only useful in shipped logs.
		args = append(args, "--deqp-log-images=disable")
	}
	args = append(args, "--deqp-watchdog=enable")

	return shutil.NewCommand("am", "instrument").
		Arg(abiArgs(e.opts.ABI)...).
		Arg("-w").
		Extra("deqpLogFileName", LogFile).
		Extra("deqpCmdLine", joinNonEmpty(args)).
		Extra("deqpLogData", strconv.FormatBool(e.opts.CollectLogs)).
		Arg(TestInstrumentation).
		String()
}

// RunBatch implements engine.Executor.
func (e *Executor) RunBatch(ctx context.Context, b *batch.Batch, h instrumentation.Handler) (bool, error) {
	for _, f := range []string{CaseListFile, LogFile} {
		if _, err := e.dev.ExecuteShellCommand(ctx, "rm "+f); err != nil {
			return false, err
		}
	}
	if err := e.dev.PushString(ctx, caselist.Trie(b.Tests)+"\n", CaseListFile); err != nil {
		return false, err
	}

	cmd := e.Command(b)
	logging.Debugf(ctx, "Running command %q", cmd)
	p := instrumentation.NewParser(h)
	w := instrumentation.NewWriter(ctx, p)
	err := e.dev.StreamShellCommand(ctx, cmd, w, e.opts.UnresponsiveTimeout)
	w.Close()
	return p.WasSuccessful(), err
}

func joinNonEmpty(args []string) string {
	var parts []string
	for _, a := range args {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}
