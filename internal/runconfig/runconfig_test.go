// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runconfig

import (
	gotesting "testing"

	"github.com/google/go-cmp/cmp"
)

func TestID(t *gotesting.T) {
	c := Config{GLConfig: "rgba8888d24s8", Rotation: RotationLandscape, SurfaceType: "pbuffer"}
	if got, want := c.ID(), "{glformat=rgba8888d24s8,rotation=90,surfacetype=pbuffer}"; got != want {
		t.Errorf("ID() = %q; want %q", got, want)
	}
	if got, want := Default.ID(), "{glformat=rgba8888d24s8,rotation=unspecified,surfacetype=window}"; got != want {
		t.Errorf("Default.ID() = %q; want %q", got, want)
	}
}

func TestEquality(t *gotesting.T) {
	a := Config{"rgb565d0s0", RotationPortrait, "window"}
	b := Config{"rgb565d0s0", RotationPortrait, "window"}
	m := map[Config]int{a: 1}
	if m[b] != 1 {
		t.Errorf("Config %v not found by equal key %v", a, b)
	}
}

func TestFromArgs(t *gotesting.T) {
	for _, tc := range []struct {
		args map[string]string
		want Config
	}{
		{nil, Default},
		{map[string]string{"rotation": "270"}, Config{"rgba8888d24s8", RotationReverseLandscape, "window"}},
		{
			map[string]string{"glconfig": "rgb565d0s0", "rotation": "0", "surfaceType": "fbo"},
			Config{"rgb565d0s0", RotationPortrait, "fbo"},
		},
	} {
		if diff := cmp.Diff(FromArgs(tc.args), tc.want); diff != "" {
			t.Errorf("FromArgs(%v) mismatch (-got +want):\n%s", tc.args, diff)
		}
	}
}

func TestCmdLine(t *gotesting.T) {
	for _, tc := range []struct {
		cfg  Config
		want string
	}{
		{Default, "--deqp-gl-config-name=rgba8888d24s8 --deqp-screen-rotation=unspecified --deqp-surface-type=window"},
		{Config{"", RotationLandscape, ""}, "--deqp-screen-rotation=90"},
		{Config{}, ""},
	} {
		if got := tc.cfg.CmdLine(); got != tc.want {
			t.Errorf("%v.CmdLine() = %q; want %q", tc.cfg, got, tc.want)
		}
	}
}

func TestRotationClass(t *gotesting.T) {
	for _, tc := range []struct {
		r                   Rotation
		portrait, landscape bool
	}{
		{RotationUnspecified, false, false},
		{RotationPortrait, true, false},
		{RotationLandscape, false, true},
		{RotationReversePortrait, true, false},
		{RotationReverseLandscape, false, true},
	} {
		if got := tc.r.IsPortraitClass(); got != tc.portrait {
			t.Errorf("%q.IsPortraitClass() = %v; want %v", tc.r, got, tc.portrait)
		}
		if got := tc.r.IsLandscapeClass(); got != tc.landscape {
			t.Errorf("%q.IsLandscapeClass() = %v; want %v", tc.r, got, tc.landscape)
		}
		if !tc.r.Valid() {
			t.Errorf("%q.Valid() = false; want true", tc.r)
		}
	}
	if Rotation("45").Valid() {
		t.Error(`"45".Valid() = true; want false`)
	}
}
