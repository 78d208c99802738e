// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil builds shell command lines for device commands.
package shutil

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// \w is [0-9A-Za-z_]. A leading '=' is unsafe in zsh.
	leadingSafeChars  = `-\w@%+:,./`
	trailingSafeChars = leadingSafeChars + "="
)

// safeRE matches an argument that needs no quoting.
var safeRE = regexp.MustCompile(fmt.Sprintf("^[%s][%s]*$", leadingSafeChars, trailingSafeChars))

// Escape quotes s for use as one shell argument. s is returned unchanged if
// it needs no quoting.
func Escape(s string) string {
	if safeRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapeSlice quotes each of args and joins them with spaces.
func EscapeSlice(args []string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = Escape(arg)
	}
	return strings.Join(escaped, " ")
}

// Command accumulates the arguments of a shell command line.
type Command struct {
	args []string
}

// NewCommand starts a command line with name and args.
func NewCommand(name string, args ...string) *Command {
	return &Command{args: append([]string{name}, args...)}
}

// Arg appends args, skipping empty ones.
func (c *Command) Arg(args ...string) *Command {
	for _, a := range args {
		if a != "" {
			c.args = append(c.args, a)
		}
	}
	return c
}

// Extra appends an "-e key value" pair as passed to "am instrument".
func (c *Command) Extra(key, value string) *Command {
	c.args = append(c.args, "-e", key, value)
	return c
}

// Args returns the arguments added so far.
func (c *Command) Args() []string {
	return append([]string(nil), c.args...)
}

// String returns the escaped command line.
func (c *Command) String() string {
	return EscapeSlice(c.args)
}
