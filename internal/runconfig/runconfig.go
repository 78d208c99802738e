// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runconfig defines the display configurations that dEQP test cases
// are executed under.
package runconfig

import (
	"fmt"
	"strings"
)

// Rotation is a screen rotation a test instance requests.
type Rotation string

// Recognized rotations.
const (
	RotationUnspecified      Rotation = "unspecified"
	RotationPortrait         Rotation = "0"
	RotationLandscape        Rotation = "90"
	RotationReversePortrait  Rotation = "180"
	RotationReverseLandscape Rotation = "270"
)

// IsPortraitClass reports whether r needs a device that supports portrait
// orientation.
func (r Rotation) IsPortraitClass() bool {
	return r == RotationPortrait || r == RotationReversePortrait
}

// IsLandscapeClass reports whether r needs a device that supports landscape
// orientation.
func (r Rotation) IsLandscapeClass() bool {
	return r == RotationLandscape || r == RotationReverseLandscape
}

// Valid reports whether r is one of the recognized rotations.
func (r Rotation) Valid() bool {
	switch r {
	case RotationUnspecified, RotationPortrait, RotationLandscape, RotationReversePortrait, RotationReverseLandscape:
		return true
	}
	return false
}

// Config is an immutable run configuration. Configs with equal fields are
// equal and can be used as map keys.
type Config struct {
	GLConfig    string
	Rotation    Rotation
	SurfaceType string
}

// Default is the configuration used by tests that declare no instances.
var Default = Config{
	GLConfig:    "rgba8888d24s8",
	Rotation:    RotationUnspecified,
	SurfaceType: "window",
}

// Instance argument names understood by FromArgs.
const (
	ArgGLConfig    = "glconfig"
	ArgRotation    = "rotation"
	ArgSurfaceType = "surfaceType"
)

// FromArgs builds a Config from test instance arguments. Missing arguments
// take their value from Default.
func FromArgs(args map[string]string) Config {
	c := Default
	if v, ok := args[ArgGLConfig]; ok {
		c.GLConfig = v
	}
	if v, ok := args[ArgRotation]; ok {
		c.Rotation = Rotation(v)
	}
	if v, ok := args[ArgSurfaceType]; ok {
		c.SurfaceType = v
	}
	return c
}

// ID returns the canonical identity string of c.
func (c Config) ID() string {
	return fmt.Sprintf("{glformat=%s,rotation=%s,surfacetype=%s}", c.GLConfig, c.Rotation, c.SurfaceType)
}

// String returns the same value as ID.
func (c Config) String() string {
	return c.ID()
}

// CmdLine returns the deqp command line flags selecting c. Empty fields are
// omitted.
func (c Config) CmdLine() string {
	var flags []string
	if c.GLConfig != "" {
		flags = append(flags, "--deqp-gl-config-name="+c.GLConfig)
	}
	if c.Rotation != "" {
		flags = append(flags, "--deqp-screen-rotation="+string(c.Rotation))
	}
	if c.SurfaceType != "" {
		flags = append(flags, "--deqp-surface-type="+c.SurfaceType)
	}
	return strings.Join(flags, " ")
}
