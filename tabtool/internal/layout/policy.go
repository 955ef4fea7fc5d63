// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "strings"

// Tag marks a section for a special treatment during selection.
type Tag uint8

const (
	// Relocation marks the relocation data appended after program data.
	Relocation Tag = 1 << iota
	// Persistent marks a writeable flash region.
	Persistent
)

func (t Tag) String() string {
	switch t {
	case 0:
		return "none"
	case Relocation:
		return "relocation"
	case Persistent:
		return "persistent"
	case Relocation | Persistent:
		return "relocation|persistent"
	}
	return "unknown"
}

// Rule tags every section which name satisfies Match.
type Rule struct {
	Name  string
	Match func(name string) bool
	Tag   Tag
}

// Policy maps section names to tags. All matching rules apply.
type Policy struct {
	Rules []Rule
}

const (
	RelocationMarker = ".rel."
	PersistentMarker = ".wfr"
)

// DefaultPolicy returns the naming convention used by the Tock toolchains.
func DefaultPolicy() Policy {
	return Policy{Rules: []Rule{
		{"relocation", NameContains(RelocationMarker), Relocation},
		{"persistent", NameContains(PersistentMarker), Persistent},
	}}
}

func (p Policy) Classify(name string) (t Tag) {
	for _, r := range p.Rules {
		if r.Match(name) {
			t |= r.Tag
		}
	}
	return
}

func NameContains(substr string) func(string) bool {
	return func(name string) bool { return strings.Contains(name, substr) }
}

func NamePrefix(prefix string) func(string) bool {
	return func(name string) bool { return strings.HasPrefix(name, prefix) }
}
