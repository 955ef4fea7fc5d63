// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tbf

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"
)

// DefaultRAMAlign is the alignment of the derived minimum RAM size.
const DefaultRAMAlign = 8

type Params struct {
	StackSize      uint32
	AppHeapSize    uint32
	KernelHeapSize uint32

	// MinimumRAMSize, if nil, is derived from RAMOnlySize rounded up to
	// RAMAlign (DefaultRAMAlign if zero).
	MinimumRAMSize *uint32
	RAMOnlySize    uint64
	RAMAlign       uint32

	// ProtectedRegionSize, if nil, defaults to the header size.
	ProtectedRegionSize *uint32

	ImageLen     uint32
	Regions      []FlashRegion
	PackageName  string
	FixedAddress *uint32
	InitFnOffset uint32
	Flags        Flags

	// PowerOfTwo rounds the total size up to a power of two, at least
	// MinAppSize. A total size that already is a power of two is kept.
	PowerOfTwo bool
}

// Synthesize creates the header of an app described by p.
func Synthesize(p *Params) (*Header, error) {
	ml := MemoryLayout{
		StackSize:      p.StackSize,
		AppHeapSize:    p.AppHeapSize,
		KernelHeapSize: p.KernelHeapSize,
		InitFnOffset:   p.InitFnOffset,
	}
	if p.MinimumRAMSize != nil {
		ml.MinimumRAMSize = *p.MinimumRAMSize
	} else {
		align := uint64(p.RAMAlign)
		if align == 0 {
			align = DefaultRAMAlign
		}
		ram := (p.RAMOnlySize + align - 1) / align * align
		if ram > 1<<32-1 {
			return nil, fmt.Errorf("%w: minimum RAM size %d exceeds 32 bits", ErrHeaderOverflow, ram)
		}
		ml.MinimumRAMSize = uint32(ram)
	}

	entries := []Entry{ml}
	regions := slices.Clone(p.Regions)
	slices.SortStableFunc(regions, func(a, b FlashRegion) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	for _, r := range regions {
		entries = append(entries, r)
	}
	if p.PackageName != "" {
		if len(p.PackageName) > 0xffff {
			return nil, fmt.Errorf("%w: package name of %d bytes", ErrHeaderOverflow, len(p.PackageName))
		}
		entries = append(entries, PackageName(p.PackageName))
	}
	if p.FixedAddress != nil {
		entries = append(entries, FixedAddress(*p.FixedAddress))
	}

	size := EncodedSize(entries)
	if size > 0xffff {
		return nil, fmt.Errorf("%w: header size %d exceeds 16 bits", ErrHeaderOverflow, size)
	}
	protected := uint32(size)
	if p.ProtectedRegionSize != nil {
		protected = *p.ProtectedRegionSize
		if protected < uint32(size) {
			return nil, fmt.Errorf(
				"%w: protected region size %d, header size %d",
				ErrProtectedRegionTooSmall, protected, size,
			)
		}
	}
	ml.ProtectedRegionSize = protected
	entries[0] = ml

	total := uint64(protected) + uint64(p.ImageLen)
	if p.PowerOfTwo && total&(total-1) != 0 {
		total = max(nextPow2(total), MinAppSize)
	}
	if total > 1<<32-1 {
		return nil, fmt.Errorf("%w: total size %d exceeds 32 bits", ErrHeaderOverflow, total)
	}

	h := &Header{
		TotalSize:      uint32(total),
		HeaderSize:     uint16(size),
		Version:        Version,
		Flags:          p.Flags,
		AppFlashLength: p.ImageLen,
		Entries:        entries,
	}
	b, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	h.Checksum = binary.LittleEndian.Uint32(b[12:])
	return h, nil
}

func nextPow2(n uint64) uint64 {
	if n&(n-1) == 0 && n != 0 {
		return n
	}
	return 1 << bits.Len64(n)
}
