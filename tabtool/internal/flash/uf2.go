// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const (
	uf2NotMainFlash    = 0x00000001
	uf2FamilyIDPresent = 0x00002000

	uf2Magic0 = 0x0a324655
	uf2Magic1 = 0x9e5d5157
	uf2Magic2 = 0x0ab16f30

	// UF2BlockSize is the size of one encoded UF2 block.
	UF2BlockSize = 512
	// UF2PayloadSize is the number of image bytes carried by one block.
	UF2PayloadSize = 256
)

var uf2Families = map[string]uint32{
	"nrf52840":      0xada52840,
	"nrf52":         0x1b57745f,
	"stm32f4":       0x57755a57,
	"stm32l4":       0x00ff6919,
	"samd51":        0x55114460,
	"esp32c3":       0xd42ba06c,
	"rp2040":        0xe48bff56,
	"rp2350_arm_s":  0xe48bff59,
	"rp2350_riscv":  0xe48bff5a,
	"rp2350_arm_ns": 0xe48bff5b,
}

// Families returns the known UF2 family names, sorted.
func Families() []string {
	names := make([]string, 0, len(uf2Families))
	for name := range uf2Families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Family returns the UF2 family ID for a name from Families or for a number.
func Family(s string) (uint32, error) {
	if id, ok := uf2Families[strings.ToLower(s)]; ok {
		return id, nil
	}
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
	return uint32(id), nil
}

// WriteUF2 writes data, to be placed at addr, as UF2 blocks. The last block
// is zero padded. A zero family leaves the family ID flag unset.
func WriteUF2(w io.Writer, addr, family uint32, data []byte) error {
	flags := uint32(0)
	if family != 0 {
		flags |= uf2FamilyIDPresent
	}
	total := (len(data) + UF2PayloadSize - 1) / UF2PayloadSize
	le := binary.LittleEndian
	var b [UF2BlockSize]byte
	for seq := 0; seq < total; seq++ {
		clear(b[:])
		le.PutUint32(b[0:], uf2Magic0)
		le.PutUint32(b[4:], uf2Magic1)
		le.PutUint32(b[8:], flags)
		le.PutUint32(b[12:], addr+uint32(seq*UF2PayloadSize))
		le.PutUint32(b[16:], UF2PayloadSize)
		le.PutUint32(b[20:], uint32(seq))
		le.PutUint32(b[24:], uint32(total))
		le.PutUint32(b[28:], family)
		copy(b[32:32+UF2PayloadSize], data[seq*UF2PayloadSize:])
		le.PutUint32(b[508:], uf2Magic2)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// UF2Block is the decoded form of one UF2 block.
type UF2Block struct {
	Addr   uint32
	Seq    uint32
	Total  uint32
	Family uint32
	Data   []byte
}

// ReadUF2 decodes a sequence of UF2 blocks. Blocks not meant for the main
// flash are skipped.
func ReadUF2(b []byte) ([]UF2Block, error) {
	if len(b)%UF2BlockSize != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of %d", ErrMalformedUF2, len(b), UF2BlockSize)
	}
	var blocks []UF2Block
	for off := 0; off < len(b); off += UF2BlockSize {
		p := b[off : off+UF2BlockSize]
		le := binary.LittleEndian
		if le.Uint32(p) != uf2Magic0 || le.Uint32(p[4:]) != uf2Magic1 || le.Uint32(p[508:]) != uf2Magic2 {
			return nil, fmt.Errorf("%w: bad magic in block at %#x", ErrMalformedUF2, off)
		}
		flags := le.Uint32(p[8:])
		n := le.Uint32(p[16:])
		if n > 476 {
			return nil, fmt.Errorf("%w: payload size %d in block at %#x", ErrMalformedUF2, n, off)
		}
		if flags&uf2NotMainFlash != 0 {
			continue
		}
		blocks = append(blocks, UF2Block{
			Addr:   le.Uint32(p[12:]),
			Seq:    le.Uint32(p[20:]),
			Total:  le.Uint32(p[24:]),
			Family: le.Uint32(p[28:]),
			Data:   append([]byte(nil), p[32:32+n]...),
		})
	}
	return blocks, nil
}
