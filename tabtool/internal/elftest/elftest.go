// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elftest builds small ELF32 little-endian executables for tests.
package elftest

import (
	"debug/elf"
	"encoding/binary"
)

const (
	ehdrSize = 52
	shdrSize = 40
)

// Section describes a section of the built file. Size is used only for
// SHT_NOBITS sections, the size of other sections is len(Data).
type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint32
	Data  []byte
	Size  uint32
}

func Text(name string, data []byte) Section {
	return Section{name, elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_EXECINSTR, 0, data, 0}
}

func Data(name string, data []byte) Section {
	return Section{name, elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 0, data, 0}
}

func BSS(name string, size uint32) Section {
	return Section{name, elf.SHT_NOBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 0, nil, size}
}

// Fill returns n bytes with the value b.
func Fill(n int, b byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = b
	}
	return p
}

// Build returns an ARM executable with the given entry point and sections.
// The section data is placed in the file in the order of the ss slice, each
// section 4-byte aligned, starting just after the ELF header.
func Build(entry uint32, ss ...Section) []byte {
	le := binary.LittleEndian

	shstrtab := []byte{0}
	names := make([]uint32, len(ss))
	for i, s := range ss {
		names[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, s.Name...)
		shstrtab = append(shstrtab, 0)
	}
	shstrName := uint32(len(shstrtab))
	shstrtab = append(shstrtab, ".shstrtab"...)
	shstrtab = append(shstrtab, 0)

	buf := make([]byte, ehdrSize)
	offs := make([]uint32, len(ss))
	for i, s := range ss {
		buf = align4(buf)
		offs[i] = uint32(len(buf))
		if s.Type != elf.SHT_NOBITS {
			buf = append(buf, s.Data...)
		}
	}
	buf = align4(buf)
	shstrOff := uint32(len(buf))
	buf = append(buf, shstrtab...)
	buf = align4(buf)
	shoff := uint32(len(buf))
	shnum := len(ss) + 2

	// null section header
	buf = append(buf, make([]byte, shdrSize)...)
	for i, s := range ss {
		size := uint32(len(s.Data))
		if s.Type == elf.SHT_NOBITS {
			size = s.Size
		}
		buf = appendShdr(buf, names[i], uint32(s.Type), uint32(s.Flags), s.Addr, offs[i], size)
	}
	buf = appendShdr(buf, shstrName, uint32(elf.SHT_STRTAB), 0, 0, shstrOff, uint32(len(shstrtab)))

	copy(buf, []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	le.PutUint16(buf[16:], uint16(elf.ET_EXEC))
	le.PutUint16(buf[18:], uint16(elf.EM_ARM))
	le.PutUint32(buf[20:], uint32(elf.EV_CURRENT))
	le.PutUint32(buf[24:], entry)
	le.PutUint32(buf[28:], 0) // no program headers
	le.PutUint32(buf[32:], shoff)
	le.PutUint32(buf[36:], 0x05000000) // EABI5
	le.PutUint16(buf[40:], ehdrSize)
	le.PutUint16(buf[42:], 32)
	le.PutUint16(buf[44:], 0)
	le.PutUint16(buf[46:], shdrSize)
	le.PutUint16(buf[48:], uint16(shnum))
	le.PutUint16(buf[50:], uint16(shnum-1))
	return buf
}

func appendShdr(buf []byte, name, typ, flags, addr, off, size uint32) []byte {
	var h [shdrSize]byte
	le := binary.LittleEndian
	le.PutUint32(h[0:], name)
	le.PutUint32(h[4:], typ)
	le.PutUint32(h[8:], flags)
	le.PutUint32(h[12:], addr)
	le.PutUint32(h[16:], off)
	le.PutUint32(h[20:], size)
	le.PutUint32(h[32:], 4)
	return append(buf, h[:]...)
}

func align4(b []byte) []byte {
	for len(b)&3 != 0 {
		b = append(b, 0)
	}
	return b
}
