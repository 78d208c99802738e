// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package caselist

import (
	gotesting "testing"

	"go.chromium.org/deqprunner/internal/testid"
)

func TestTrie(t *gotesting.T) {
	for _, tc := range []struct {
		paths []string
		want  string
	}{
		{nil, "{}"},
		{[]string{"dEQP-GLES3.info.version"}, "{dEQP-GLES3{info{version}}}"},
		{
			[]string{"dEQP-GLES3.info.vendor", "dEQP-GLES3.info.renderer", "dEQP-GLES3.info.version"},
			"{dEQP-GLES3{info{vendor,renderer,version}}}",
		},
		{
			[]string{"dEQP-GLES3.a.b.c", "dEQP-GLES3.a.x", "dEQP-GLES3.d.e", "dEQP-GLES3.a.b.f"},
			"{dEQP-GLES3{a{x,b{c,f}},d{e}}}",
		},
		{[]string{"dEQP-EGL.x", "dEQP-GLES2.y"}, "{dEQP-EGL{x},dEQP-GLES2{y}}"},
	} {
		if got := Trie(testid.FromPaths(tc.paths...)); got != tc.want {
			t.Errorf("Trie(%q) = %q; want %q", tc.paths, got, tc.want)
		}
	}
}
