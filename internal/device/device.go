// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package device defines the interface the runner uses to talk to a device
// and the errors the transport reports.
package device

import (
	"context"
	"io"
	"time"

	"go.chromium.org/deqprunner/errors"
)

// Device is a connection to a device under test.
//
// Methods return *LinkOpenError if a command could not be started and
// *LinkKilledError if an established command link died or stopped
// producing output. Methods return the context error when ctx is done.
type Device interface {
	// ExecuteShellCommand runs cmd and returns its output.
	ExecuteShellCommand(ctx context.Context, cmd string) (string, error)
	// StreamShellCommand runs cmd and writes its output to w as it arrives.
	// The command link counts as killed if no output arrives for
	// unresponsiveTimeout.
	StreamShellCommand(ctx context.Context, cmd string, w io.Writer, unresponsiveTimeout time.Duration) error
	// PushString writes content to the file at path on the device.
	PushString(ctx context.Context, content, path string) error
	// Property returns the value of a system property.
	Property(ctx context.Context, name string) (string, error)
	// Recover tries to restore a lost connection to the device.
	Recover(ctx context.Context) error
	// Reboot reboots the device and waits for it to come back.
	Reboot(ctx context.Context) error
}

// LinkOpenError indicates that a command link could not be opened.
type LinkOpenError struct {
	err error
}

// NewLinkOpenError wraps cause into a *LinkOpenError.
func NewLinkOpenError(cause error, msg string) *LinkOpenError {
	return &LinkOpenError{errors.Wrap(cause, msg)}
}

func (e *LinkOpenError) Error() string { return "command link open failed: " + e.err.Error() }

// Unwrap returns the underlying error.
func (e *LinkOpenError) Unwrap() error { return e.err }

// LinkKilledError indicates that an established command link died.
type LinkKilledError struct {
	err error
}

// NewLinkKilledError wraps cause into a *LinkKilledError.
func NewLinkKilledError(cause error, msg string) *LinkKilledError {
	return &LinkKilledError{errors.Wrap(cause, msg)}
}

func (e *LinkKilledError) Error() string { return "command link killed: " + e.err.Error() }

// Unwrap returns the underlying error.
func (e *LinkKilledError) Unwrap() error { return e.err }

// UnavailableError indicates that the device could not be brought back.
// Runs cannot continue after it.
type UnavailableError struct {
	err error
}

// NewUnavailableError creates an *UnavailableError with msg.
func NewUnavailableError(msg string) *UnavailableError {
	return &UnavailableError{errors.New(msg)}
}

func (e *UnavailableError) Error() string { return "device unavailable: " + e.err.Error() }

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error { return e.err }

// IsLinkOpen reports whether err contains a *LinkOpenError.
func IsLinkOpen(err error) bool {
	var e *LinkOpenError
	return errors.As(err, &e)
}

// IsLinkKilled reports whether err contains a *LinkKilledError.
func IsLinkKilled(err error) bool {
	var e *LinkKilledError
	return errors.As(err, &e)
}

// IsUnavailable reports whether err contains an *UnavailableError.
func IsUnavailable(err error) bool {
	var e *UnavailableError
	return errors.As(err, &e)
}
