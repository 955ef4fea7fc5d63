// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package object

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/tabtool/tabtool/internal/elftest"
)

func TestReadSections(t *testing.T) {
	text := elftest.Text(".text", elftest.Fill(16, 0xaa))
	text.Addr = 0x80000000
	data := elftest.Data(".data", elftest.Fill(8, 0xbb))
	bss := elftest.BSS(".bss", 64)
	img := elftest.Build(0x80000004, text, data, bss)

	f, err := Read(img)
	require.NoError(t, err)
	assert.Equal(t, elf.EM_ARM, f.Machine)
	assert.Equal(t, elf.ELFCLASS32, f.Class)
	assert.Equal(t, uint64(0x80000004), f.Entry)

	names := make([]string, len(f.Sections))
	for i, s := range f.Sections {
		names[i] = s.Name
	}
	assert.Equal(t, []string{".text", ".data", ".bss", ".shstrtab"}, names)

	s := f.Sections[0]
	assert.Equal(t, ProgramData, s.Kind)
	assert.True(t, s.Flags.Has(Allocated|Executable))
	assert.False(t, s.Flags.Any(Writable))
	assert.Equal(t, elftest.Fill(16, 0xaa), f.Data(&s))

	s = f.Sections[1]
	assert.Equal(t, "WA-", s.Flags.String())
	assert.Equal(t, elftest.Fill(8, 0xbb), f.Data(&s))

	s = f.Sections[2]
	assert.Equal(t, NoData, s.Kind)
	assert.Equal(t, uint64(64), s.Size)
	assert.Nil(t, f.Data(&s))

	assert.Equal(t, Other, f.Sections[3].Kind)
	for i := 1; i < len(f.Sections); i++ {
		assert.LessOrEqual(t, f.Sections[i-1].Offset, f.Sections[i].Offset)
	}
}

func TestReadRelocationKind(t *testing.T) {
	rel := elftest.Section{Name: ".rel.data", Type: elf.SHT_REL, Data: make([]byte, 8)}
	f, err := Read(elftest.Build(0, rel))
	require.NoError(t, err)
	assert.Equal(t, Relocation, f.Sections[0].Kind)
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("\x7fFLE not an elf file at all, just some text padding it out")},
		{"truncated header", elftest.Build(0, elftest.Text(".text", make([]byte, 4)))[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedObject), "got %v", err)
		})
	}
}

func TestReadSectionPastEnd(t *testing.T) {
	img := elftest.Build(0, elftest.Text(".text", make([]byte, 16)))
	// Section 1 (.text) header: grow its size far beyond the file.
	shoff := binary.LittleEndian.Uint32(img[32:])
	binary.LittleEndian.PutUint32(img[shoff+40+20:], 0x10000)

	_, err := Read(img)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedObject)
}

func TestEntrySection(t *testing.T) {
	a := elftest.Text(".text", make([]byte, 32))
	a.Addr = 0x1000
	b := elftest.Text(".text.dup", make([]byte, 32))
	b.Addr = 0x1010
	dbg := elftest.Section{Name: ".debug_info", Type: elf.SHT_PROGBITS, Addr: 0x1000, Data: make([]byte, 64)}

	f, err := Read(elftest.Build(0x1008, a, dbg))
	require.NoError(t, err)
	s, err := f.EntrySection()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, ".text", s.Name)

	f, err = Read(elftest.Build(0x5000, a))
	require.NoError(t, err)
	s, err = f.EntrySection()
	require.NoError(t, err)
	assert.Nil(t, s)

	f, err = Read(elftest.Build(0x1018, a, b))
	require.NoError(t, err)
	_, err = f.EntrySection()
	var se *SectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ".text.dup", se.Section)
	assert.ErrorIs(t, err, ErrMalformedObject)
}

func TestSectionContains(t *testing.T) {
	s := Section{Addr: 0x1000, Size: 0x100}
	assert.True(t, s.Contains(0x1000))
	assert.True(t, s.Contains(0x10ff))
	assert.False(t, s.Contains(0x1100))
	assert.False(t, s.Contains(0xfff))

	wrap := Section{Addr: 1<<64 - 0x10, Size: 0x20}
	assert.True(t, wrap.Contains(1<<64-1))
	assert.False(t, wrap.Contains(0x8))
}
