// Copyright 2023 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package caselist renders the case list file that tells the dEQP binary
// which test cases to run.
package caselist

import (
	"strings"

	"go.chromium.org/deqprunner/internal/testid"
)

// Trie returns the case list for ids in the dEQP trie syntax, e.g.
// "{dEQP-GLES3{info{vendor,renderer}}}". Within a group, cases come before
// subgroups, and both keep their first-appearance order.
func Trie(ids []testid.ID) string {
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = id.Path()
	}
	var b strings.Builder
	writeTrie(&b, paths)
	return b.String()
}

func writeTrie(b *strings.Builder, paths []string) {
	b.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			b.WriteByte(',')
		}
		first = false
	}

	var groups []string
	children := make(map[string][]string)
	for _, p := range paths {
		head, rest, ok := strings.Cut(p, ".")
		if !ok {
			sep()
			b.WriteString(p)
			continue
		}
		if _, seen := children[head]; !seen {
			groups = append(groups, head)
		}
		children[head] = append(children[head], rest)
	}
	for _, g := range groups {
		sep()
		b.WriteString(g)
		writeTrie(b, children[g])
	}
	b.WriteByte('}')
}
