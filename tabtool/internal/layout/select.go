// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout selects the ELF sections that make up the application image
// and concatenates them.
package layout

import (
	"errors"
	"fmt"
	"sort"

	"github.com/embeddedgo/tabtool/tabtool/internal/object"
)

var (
	ErrTruncatedSectionData       = errors.New("layout: truncated section data")
	ErrUnresolvedPersistentRegion = errors.New("layout: persistent region not in the image")
	ErrAmbiguousSection           = errors.New("layout: section matches conflicting selection rules")
)

type Selection struct {
	Primary    []object.Section // program data, in file order
	Secondary  []object.Section // relocation data, in file order
	Persistent []object.Section // writeable flash regions, in file order
	RAMOnly    []object.Section // allocated and writeable, not in the image
}

// Sections returns the selected sections in the image order.
func (sel *Selection) Sections() []object.Section {
	ss := make([]object.Section, 0, len(sel.Primary)+len(sel.Secondary))
	ss = append(ss, sel.Primary...)
	return append(ss, sel.Secondary...)
}

// RAMOnlySize returns the total size of the RAM-only sections.
func (sel *Selection) RAMOnlySize() (n uint64) {
	for _, s := range sel.RAMOnly {
		n += s.Size
	}
	return
}

func isPrimary(s *object.Section) bool {
	return s.Kind == object.ProgramData && s.Size > 0 &&
		s.Flags.Any(object.Writable|object.Executable|object.Allocated)
}

func isSecondary(s *object.Section, tag Tag) bool {
	return tag&Relocation != 0 && s.Kind != object.NoData &&
		s.Flags.Any(object.Writable|object.Allocated)
}

// Select decides which sections contribute to the image and in which order.
// Program data sections go first, followed by the relocation sections, both
// groups in the ascending file offset order.
func Select(sections []object.Section, p Policy) (*Selection, error) {
	ss := make([]object.Section, len(sections))
	copy(ss, sections)
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].Offset < ss[j].Offset })

	sel := new(Selection)
	selected := make(map[int]bool, len(ss))
	tags := make([]Tag, len(ss))
	for i := range ss {
		s := &ss[i]
		tags[i] = p.Classify(s.Name)
		if tags[i] == Relocation|Persistent {
			return nil, &object.SectionError{
				Section: s.Name,
				Err:     fmt.Errorf("%w: %s", ErrAmbiguousSection, tags[i]),
			}
		}
		if !isPrimary(s) {
			continue
		}
		if tags[i]&Relocation != 0 {
			return nil, &object.SectionError{Section: s.Name, Err: ErrAmbiguousSection}
		}
		sel.Primary = append(sel.Primary, *s)
		selected[s.Index] = true
	}
	for i := range ss {
		s := &ss[i]
		if selected[s.Index] || !isSecondary(s, tags[i]) {
			continue
		}
		sel.Secondary = append(sel.Secondary, *s)
		selected[s.Index] = true
	}
	for i := range ss {
		s := &ss[i]
		if tags[i]&Persistent != 0 && s.Size > 0 {
			if !selected[s.Index] {
				return nil, &object.SectionError{
					Section: s.Name,
					Err:     fmt.Errorf("%w (%s, %s)", ErrUnresolvedPersistentRegion, s.Kind, s.Flags),
				}
			}
			sel.Persistent = append(sel.Persistent, *s)
		}
		if !selected[s.Index] && s.Flags.Has(object.Allocated|object.Writable) {
			sel.RAMOnly = append(sel.RAMOnly, *s)
		}
	}
	return sel, nil
}
