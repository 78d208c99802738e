// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testid identifies dEQP test cases.
package testid

import "strings"

// ID identifies a test case by class and name. The dEQP case path
// "dEQP-GLES3.info.vendor" has class "dEQP-GLES3.info" and name "vendor".
type ID struct {
	Class string
	Name  string
}

// FromPath parses a dot-separated dEQP case path.
// A path without dots has an empty class.
func FromPath(path string) ID {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ID{Name: path}
	}
	return ID{Class: path[:i], Name: path[i+1:]}
}

// Path returns the dEQP case path of id.
func (id ID) Path() string {
	if id.Class == "" {
		return id.Name
	}
	return id.Class + "." + id.Name
}

// String returns the case path in the "class#name" form used by reports.
func (id ID) String() string {
	return id.Class + "#" + id.Name
}

// FromPaths parses each of paths with FromPath.
func FromPaths(paths ...string) []ID {
	ids := make([]ID, len(paths))
	for i, p := range paths {
		ids[i] = FromPath(p)
	}
	return ids
}
