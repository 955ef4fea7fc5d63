// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tbf

import (
	"encoding/binary"
	"fmt"
)

// EncodedSize returns the size of the header with the given entries.
func EncodedSize(entries []Entry) int {
	n := BaseSize
	for _, e := range entries {
		n += tlvSize + align4(len(e.appendPayload(nil)))
	}
	return n
}

// Checksum returns the XOR of all 32-bit little endian words in b. The
// checksum field (b[12:16]) is treated as zero.
func Checksum(b []byte) uint32 {
	var sum uint32
	for i := 0; i < len(b); i += 4 {
		if i == 12 {
			continue
		}
		var w [4]byte
		copy(w[:], b[i:])
		sum ^= binary.LittleEndian.Uint32(w[:])
	}
	return sum
}

// MarshalBinary encodes the header. The checksum is computed from the encoded
// bytes, the Checksum field is ignored.
func (h *Header) MarshalBinary() ([]byte, error) {
	size := EncodedSize(h.Entries)
	if size > 0xffff {
		return nil, fmt.Errorf("%w: header size %d exceeds 16 bits", ErrHeaderOverflow, size)
	}
	if size != int(h.HeaderSize) {
		return nil, fmt.Errorf("%w: header size %d, encoded %d", ErrMalformedHeader, h.HeaderSize, size)
	}
	if m, ok := h.MemoryLayout(); ok && m.ProtectedRegionSize != 0 && uint32(size) > m.ProtectedRegionSize {
		return nil, fmt.Errorf(
			"%w: header size %d exceeds protected region %d",
			ErrHeaderOverflow, size, m.ProtectedRegionSize,
		)
	}
	le := binary.LittleEndian
	b := make([]byte, BaseSize, size)
	le.PutUint32(b[0:], h.TotalSize)
	le.PutUint16(b[4:], h.HeaderSize)
	le.PutUint16(b[6:], h.Version)
	le.PutUint32(b[8:], uint32(h.Flags))
	le.PutUint32(b[16:], h.AppFlashLength)
	for _, e := range h.Entries {
		p := len(b)
		b = le.AppendUint16(b, uint16(e.Type()))
		b = le.AppendUint16(b, 0)
		b = e.appendPayload(b)
		n := len(b) - p - tlvSize
		if n > 0xffff {
			return nil, fmt.Errorf("%w: %s entry of %d bytes", ErrHeaderOverflow, e.Type(), n)
		}
		le.PutUint16(b[p+2:], uint16(n))
		for len(b)&3 != 0 {
			b = append(b, 0)
		}
	}
	le.PutUint32(b[12:], Checksum(b))
	return b, nil
}

// Parse decodes the header at the beginning of b. Entries of unknown types
// are returned as Opaque.
func Parse(b []byte) (*Header, error) {
	if len(b) < BaseSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedHeader, len(b))
	}
	le := binary.LittleEndian
	h := &Header{
		TotalSize:      le.Uint32(b[0:]),
		HeaderSize:     le.Uint16(b[4:]),
		Version:        le.Uint16(b[6:]),
		Flags:          Flags(le.Uint32(b[8:])),
		Checksum:       le.Uint32(b[12:]),
		AppFlashLength: le.Uint32(b[16:]),
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	hs := int(h.HeaderSize)
	if hs < BaseSize || hs > len(b) || hs&3 != 0 {
		return nil, fmt.Errorf("%w: header size %d, have %d bytes", ErrMalformedHeader, hs, len(b))
	}
	if sum := Checksum(b[:hs]); sum != h.Checksum {
		return nil, fmt.Errorf("%w: %#x, computed %#x", ErrBadChecksum, h.Checksum, sum)
	}
	p := b[BaseSize:hs]
	for len(p) != 0 {
		if len(p) < tlvSize {
			return nil, fmt.Errorf("%w: short TLV header", ErrMalformedHeader)
		}
		typ := Type(le.Uint16(p[0:]))
		n := int(le.Uint16(p[2:]))
		p = p[tlvSize:]
		if n > len(p) {
			return nil, fmt.Errorf("%w: %s entry of %d bytes, have %d", ErrMalformedHeader, typ, n, len(p))
		}
		e, err := decodeEntry(typ, p[:n])
		if err != nil {
			return nil, err
		}
		h.Entries = append(h.Entries, e)
		p = p[min(align4(n), len(p)):]
	}
	return h, nil
}

func decodeEntry(typ Type, p []byte) (Entry, error) {
	le := binary.LittleEndian
	short := func(want int) error {
		return fmt.Errorf("%w: %s entry of %d bytes, want %d", ErrMalformedHeader, typ, len(p), want)
	}
	switch typ {
	case TypeMemoryLayout:
		if len(p) < memoryLayoutMinSize {
			return nil, short(memoryLayoutMinSize)
		}
		m := MemoryLayout{
			StackSize:      le.Uint32(p[0:]),
			AppHeapSize:    le.Uint32(p[4:]),
			KernelHeapSize: le.Uint32(p[8:]),
		}
		if len(p) >= memoryLayoutSize {
			m.MinimumRAMSize = le.Uint32(p[12:])
			m.ProtectedRegionSize = le.Uint32(p[16:])
			m.InitFnOffset = le.Uint32(p[20:])
		}
		return m, nil
	case TypeFlashRegion:
		if len(p) < 8 {
			return nil, short(8)
		}
		return FlashRegion{le.Uint32(p[0:]), le.Uint32(p[4:])}, nil
	case TypePackageName:
		for len(p) != 0 && p[len(p)-1] == 0 {
			p = p[:len(p)-1]
		}
		return PackageName(p), nil
	case TypeFixedAddress:
		if len(p) < 4 {
			return nil, short(4)
		}
		return FixedAddress(le.Uint32(p)), nil
	}
	return Opaque{typ, append([]byte(nil), p...)}, nil
}
