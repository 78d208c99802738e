// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deqp

import (
	"context"
	"fmt"
	"strings"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/device"
	"go.chromium.org/deqprunner/internal/engine"
	"go.chromium.org/deqprunner/internal/instrumentation"
	"go.chromium.org/deqprunner/internal/logging"
	"go.chromium.org/deqprunner/internal/runconfig"
	"go.chromium.org/deqprunner/shutil"
)

// Screen orientation features reported by "pm list features".
const (
	FeaturePortrait  = "android.hardware.screen.portrait"
	FeatureLandscape = "android.hardware.screen.landscape"
)

// QueryError is returned when the device cannot answer a capability query.
type QueryError struct {
	err error
}

func newQueryError(format string, args ...interface{}) *QueryError {
	return &QueryError{errors.Errorf(format, args...)}
}

func (e *QueryError) Error() string { return "capability query failed: " + e.err.Error() }

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error { return e.err }

// IsQueryError reports whether err is or wraps a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// Checker answers whether run configs can execute on a device.
type Checker struct {
	dev device.Device
	abi string
	pkg Package

	features map[string]bool
	render   map[string]bool
}

var _ engine.CapabilityChecker = (*Checker)(nil)

// NewChecker creates a Checker for tests of pkg run with abi.
func NewChecker(dev device.Device, abi string, pkg Package) *Checker {
	return &Checker{dev: dev, abi: abi, pkg: pkg, render: make(map[string]bool)}
}

// IsSupported implements engine.CapabilityChecker.
func (c *Checker) IsSupported(ctx context.Context, cfg runconfig.Config) (bool, error) {
	if cfg.Rotation != runconfig.RotationUnspecified {
		features, err := c.deviceFeatures(ctx)
		if err != nil {
			return false, err
		}
		if cfg.Rotation.IsPortraitClass() && !features[FeaturePortrait] {
			return false, nil
		}
		if cfg.Rotation.IsLandscapeClass() && !features[FeatureLandscape] {
			return false, nil
		}
	}
	if !c.pkg.GLES {
		return true, nil
	}
	return c.isSupportedRenderConfig(ctx, cfg)
}

// deviceFeatures returns the device features, querying them once.
func (c *Checker) deviceFeatures(ctx context.Context) (map[string]bool, error) {
	if c.features != nil {
		return c.features, nil
	}
	out, err := c.dev.ExecuteShellCommand(ctx, "pm list features")
	if err != nil {
		return nil, err
	}
	features, err := parseFeatures(out)
	if err != nil {
		logging.Errorf(ctx, "Failed to parse features: %v", err)
		return nil, err
	}
	c.features = features
	return features, nil
}

// parseFeatures parses "pm list features" output made of "feature:<name>"
// tokens.
func parseFeatures(out string) (map[string]bool, error) {
	tokens := strings.Fields(out)
	if len(tokens) == 0 {
		return nil, newQueryError("empty feature list")
	}
	features := make(map[string]bool)
	for _, tok := range tokens {
		kind, name, ok := strings.Cut(tok, ":")
		if !ok || kind != "feature" || name == "" {
			return nil, newQueryError("unexpected feature format %q", tok)
		}
		features[name] = true
	}
	return features, nil
}

// isSupportedRenderConfig asks the query instrumentation whether cfg can be
// rendered with the package's GLES version. Answers are cached by command
// line.
func (c *Checker) isSupportedRenderConfig(ctx context.Context, cfg runconfig.Config) (bool, error) {
	cmdLine := joinNonEmpty([]string{
		cfg.CmdLine(),
		fmt.Sprintf("--deqp-gl-major-version=%d", c.pkg.Major),
		fmt.Sprintf("--deqp-gl-minor-version=%d", c.pkg.Minor),
	})
	if ok, found := c.render[cmdLine]; found {
		return ok, nil
	}

	cmd := shutil.NewCommand("am", "instrument").
		Arg(abiArgs(c.abi)...).
		Arg("-w").
		Extra("deqpQueryType", "renderConfigSupported").
		Extra("deqpCmdLine", cmdLine).
		Arg(QueryInstrumentation).
		String()
	out, err := c.dev.ExecuteShellCommand(ctx, cmd)
	if err != nil {
		return false, err
	}

	p := instrumentation.NewQueryParser()
	w := instrumentation.NewWriter(ctx, p)
	w.Write([]byte(out))
	w.Close()

	if !p.WasSuccessful() {
		logging.Errorf(ctx, "Failed to run capability query")
		return false, newQueryError("capability query did not finish")
	}
	res := p.Results()
	if p.ResultCode() != 0 {
		logging.Errorf(ctx, "Failed to run capability query. Code: %d, Result: %v", p.ResultCode(), res)
		return false, newQueryError("capability query exited with code %d", p.ResultCode())
	}
	var ok bool
	switch res["Supported"] {
	case "Yes":
		ok = true
	case "No":
		ok = false
	default:
		logging.Errorf(ctx, "Capability query did not return a result")
		return false, newQueryError("capability query returned %q", res["Supported"])
	}
	c.render[cmdLine] = ok
	return ok, nil
}
