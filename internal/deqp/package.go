// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package deqp drives the dEQP test app on an Android device.
package deqp

import (
	"context"
	"strconv"
	"strings"

	"go.chromium.org/deqprunner/errors"
	"go.chromium.org/deqprunner/internal/device"
)

// Package describes a dEQP test package.
type Package struct {
	// Name is the package name, such as "dEQP-GLES3".
	Name string
	// GLES is true if the package tests an OpenGL ES API.
	GLES bool
	// Major and Minor are the OpenGL ES version tested. They are zero for
	// non-GLES packages.
	Major, Minor int
}

var packages = map[string]Package{
	"dEQP-GLES2":  {Name: "dEQP-GLES2", GLES: true, Major: 2, Minor: 0},
	"dEQP-GLES3":  {Name: "dEQP-GLES3", GLES: true, Major: 3, Minor: 0},
	"dEQP-GLES31": {Name: "dEQP-GLES31", GLES: true, Major: 3, Minor: 1},
	"dEQP-EGL":    {Name: "dEQP-EGL"},
}

// LookupPackage returns the package called name.
func LookupPackage(name string) (Package, error) {
	p, ok := packages[name]
	if !ok {
		return Package{}, errors.Errorf("unknown dEQP package %q", name)
	}
	return p, nil
}

// GLESVersionProp is the system property holding the OpenGL ES version of
// the device, encoded as major<<16 | minor.
const GLESVersionProp = "ro.opengles.version"

// IsSupportedGLES reports whether dev implements OpenGL ES major.minor or
// later. A device without the property supports no version.
func IsSupportedGLES(ctx context.Context, dev device.Device, major, minor int) (bool, error) {
	s, err := dev.Property(ctx, GLESVersionProp)
	if err != nil {
		return false, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return false, errors.Wrapf(err, "bad %s value %q", GLESVersionProp, s)
	}
	devMajor := int(v >> 16)
	devMinor := int(v & 0xffff)
	return devMajor > major || (devMajor == major && devMinor >= minor), nil
}
