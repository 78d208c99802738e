// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package device

import (
	gotesting "testing"

	"go.chromium.org/deqprunner/errors"
)

func TestClassification(t *gotesting.T) {
	cause := errors.New("adb: closed")
	for _, tc := range []struct {
		name        string
		err         error
		open        bool
		killed      bool
		unavailable bool
	}{
		{"open", NewLinkOpenError(cause, "rejected"), true, false, false},
		{"killed", NewLinkKilledError(cause, "hung"), false, true, false},
		{"unavailable", NewUnavailableError("gone"), false, false, true},
		{"wrapped killed", errors.Wrap(NewLinkKilledError(cause, "hung"), "batch"), false, true, false},
		{"plain", cause, false, false, false},
	} {
		t.Run(tc.name, func(t *gotesting.T) {
			if got := IsLinkOpen(tc.err); got != tc.open {
				t.Errorf("IsLinkOpen(%v) = %v; want %v", tc.err, got, tc.open)
			}
			if got := IsLinkKilled(tc.err); got != tc.killed {
				t.Errorf("IsLinkKilled(%v) = %v; want %v", tc.err, got, tc.killed)
			}
			if got := IsUnavailable(tc.err); got != tc.unavailable {
				t.Errorf("IsUnavailable(%v) = %v; want %v", tc.err, got, tc.unavailable)
			}
		})
	}
}

func TestMessages(t *gotesting.T) {
	err := NewLinkKilledError(errors.New("EOF"), "channel died")
	if got, want := err.Error(), "command link killed: channel died: EOF"; got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}
	if !errors.Is(err, err.Unwrap()) {
		t.Error("Wrapped error not found by Is")
	}
}
