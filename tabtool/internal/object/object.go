// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package object reads the section table of a linked ELF executable.
package object

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrMalformedObject = errors.New("object: malformed object file")

type Kind uint8

const (
	Other       Kind = iota
	ProgramData      // SHT_PROGBITS
	Relocation       // SHT_REL, SHT_RELA
	NoData           // SHT_NOBITS, occupies no bytes in the file
)

func (k Kind) String() string {
	switch k {
	case ProgramData:
		return "progbits"
	case Relocation:
		return "rel"
	case NoData:
		return "nobits"
	}
	return "other"
}

type Flags uint8

const (
	Writable Flags = 1 << iota
	Executable
	Allocated
)

func (f Flags) Has(m Flags) bool { return f&m == m }

// Any reports whether at least one of the flags in m is set.
func (f Flags) Any(m Flags) bool { return f&m != 0 }

func (f Flags) String() string {
	b := []byte("---")
	if f.Has(Writable) {
		b[0] = 'W'
	}
	if f.Has(Allocated) {
		b[1] = 'A'
	}
	if f.Has(Executable) {
		b[2] = 'X'
	}
	return string(b)
}

type Section struct {
	Index  int    // index in the ELF section header table
	Name   string
	Kind   Kind
	Flags  Flags
	Addr   uint64 // address in the memory during execution
	Offset uint64 // offset in the ELF file to the beggining of the section data
	Size   uint64
}

// Contains reports whether the address a belongs to the section.
func (s *Section) Contains(a uint64) bool {
	return s.Addr <= a && a-s.Addr < s.Size
}

type File struct {
	Machine  elf.Machine
	Class    elf.Class
	Entry    uint64
	Sections []Section // sorted by Offset

	data []byte
}

// SectionError describes a problem with a particular section.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("section '%s': %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

// Read parses the ELF section table stored in data. The returned sections are
// sorted by their file offset.
func Read(data []byte) (*File, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	defer f.Close()
	of := &File{
		Machine:  f.Machine,
		Class:    f.Class,
		Entry:    f.Entry,
		Sections: make([]Section, 0, len(f.Sections)),
		data:     data,
	}
	for i, s := range f.Sections {
		if s.Type == elf.SHT_NULL {
			continue
		}
		sec := Section{
			Index:  i,
			Name:   s.Name,
			Kind:   kindOf(s.Type),
			Flags:  flagsOf(s.Flags),
			Addr:   s.Addr,
			Offset: s.Offset,
			Size:   s.Size,
		}
		if sec.Kind != NoData {
			end := sec.Offset + sec.Size
			if end < sec.Offset || end > uint64(len(data)) {
				return nil, &SectionError{sec.Name, fmt.Errorf(
					"%w: data %#x+%#x exceeds file size %#x",
					ErrMalformedObject, sec.Offset, sec.Size, len(data),
				)}
			}
		}
		of.Sections = append(of.Sections, sec)
	}
	sort.SliceStable(of.Sections, func(i, j int) bool {
		return of.Sections[i].Offset < of.Sections[j].Offset
	})
	return of, nil
}

// Bytes returns the whole object file.
func (f *File) Bytes() []byte { return f.data }

// Data returns the content of the section s. It returns nil for sections
// that occupy no space in the file.
func (f *File) Data(s *Section) []byte {
	if s.Kind == NoData {
		return nil
	}
	return f.data[s.Offset : s.Offset+s.Size]
}

// EntrySection returns the section that contains the entry point. Debug
// sections are ignored. It returns nil if the file has no entry point or it
// is not found in any section.
func (f *File) EntrySection() (*Section, error) {
	if f.Entry == 0 {
		return nil, nil
	}
	var found *Section
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.Flags&Allocated == 0 || strings.Contains(s.Name, "debug") {
			continue
		}
		if !s.Contains(f.Entry) {
			continue
		}
		if found != nil {
			return nil, &SectionError{s.Name, fmt.Errorf(
				"%w: duplicate entry point %#x (also in '%s')",
				ErrMalformedObject, f.Entry, found.Name,
			)}
		}
		found = s
	}
	return found, nil
}

func kindOf(t elf.SectionType) Kind {
	switch t {
	case elf.SHT_PROGBITS:
		return ProgramData
	case elf.SHT_REL, elf.SHT_RELA:
		return Relocation
	case elf.SHT_NOBITS:
		return NoData
	}
	return Other
}

func flagsOf(f elf.SectionFlag) (fl Flags) {
	if f&elf.SHF_WRITE != 0 {
		fl |= Writable
	}
	if f&elf.SHF_EXECINSTR != 0 {
		fl |= Executable
	}
	if f&elf.SHF_ALLOC != 0 {
		fl |= Allocated
	}
	return
}
