// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package results

import "go.chromium.org/deqprunner/internal/testid"

// Sink receives finalized per-test results. For each test, TestStarted is
// followed by zero or more TestLog calls, at most one TestFailed call, and
// exactly one TestEnded call.
type Sink interface {
	TestStarted(id testid.ID)
	TestLog(id testid.ID, name, data string)
	TestFailed(id testid.ID, msg string)
	TestEnded(id testid.ID, metrics map[string]string)
}
