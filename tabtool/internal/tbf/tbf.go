// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tbf implements the Tock Binary Format header: a fixed base record
// followed by type-length-value entries.
//
// All integers are little endian. The base record:
//
//	0  total size       u32
//	4  header size      u16
//	6  version          u16
//	8  flags            u32
//	12 checksum         u32
//	16 app flash length u32
//
// Every TLV entry is {type u16, length u16, payload}. The payload is padded
// with zeros to a multiple of 4 bytes, the length field does not include the
// padding.
package tbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	Version  = 2
	BaseSize = 20
	tlvSize  = 4

	// MinAppSize is the smallest total size of a power of two sized app.
	MinAppSize = 512
)

var (
	ErrProtectedRegionTooSmall = errors.New("tbf: protected region smaller than the header")
	ErrHeaderOverflow          = errors.New("tbf: header overflow")
	ErrMalformedHeader         = errors.New("tbf: malformed header")
	ErrUnsupportedVersion      = errors.New("tbf: unsupported version")
	ErrBadChecksum             = errors.New("tbf: bad checksum")
)

type Flags uint32

const (
	FlagEnabled Flags = 1 << 0
	FlagSticky  Flags = 1 << 1
)

func (f Flags) String() string {
	var s []string
	if f&FlagEnabled != 0 {
		s = append(s, "enabled")
	}
	if f&FlagSticky != 0 {
		s = append(s, "sticky")
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ",")
}

type Type uint16

const (
	TypeMemoryLayout Type = 1
	TypeFlashRegion  Type = 2
	TypePackageName  Type = 3
	TypeFixedAddress Type = 5
)

func (t Type) String() string {
	switch t {
	case TypeMemoryLayout:
		return "memory-layout"
	case TypeFlashRegion:
		return "writeable-flash-region"
	case TypePackageName:
		return "package-name"
	case TypeFixedAddress:
		return "fixed-address"
	}
	return fmt.Sprintf("type-%d", uint16(t))
}

// Entry is a TLV entry. The set of implementations is closed: MemoryLayout,
// FlashRegion, PackageName, FixedAddress and Opaque.
type Entry interface {
	Type() Type
	appendPayload(b []byte) []byte
}

const (
	memoryLayoutSize = 24
	// Headers written by other tools may carry only the stack and heap sizes.
	memoryLayoutMinSize = 12
)

// MemoryLayout describes the memory requirements of the app.
type MemoryLayout struct {
	StackSize           uint32
	AppHeapSize         uint32
	KernelHeapSize      uint32
	MinimumRAMSize      uint32
	ProtectedRegionSize uint32 // includes the header
	InitFnOffset        uint32 // relative to the end of the protected region
}

func (MemoryLayout) Type() Type { return TypeMemoryLayout }

func (m MemoryLayout) appendPayload(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, m.StackSize)
	b = le.AppendUint32(b, m.AppHeapSize)
	b = le.AppendUint32(b, m.KernelHeapSize)
	b = le.AppendUint32(b, m.MinimumRAMSize)
	b = le.AppendUint32(b, m.ProtectedRegionSize)
	return le.AppendUint32(b, m.InitFnOffset)
}

// FlashRegion is a writeable flash region. Offset is relative to the end of
// the protected region.
type FlashRegion struct {
	Offset uint32
	Size   uint32
}

func (FlashRegion) Type() Type { return TypeFlashRegion }

func (r FlashRegion) appendPayload(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, r.Offset)
	return binary.LittleEndian.AppendUint32(b, r.Size)
}

type PackageName string

func (PackageName) Type() Type { return TypePackageName }

func (n PackageName) appendPayload(b []byte) []byte { return append(b, n...) }

// FixedAddress is the flash address the app was linked for.
type FixedAddress uint32

func (FixedAddress) Type() Type { return TypeFixedAddress }

func (a FixedAddress) appendPayload(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(a))
}

// Opaque is an entry of unknown type, preserved as is.
type Opaque struct {
	Kind Type
	Data []byte
}

func (o Opaque) Type() Type { return o.Kind }

func (o Opaque) appendPayload(b []byte) []byte { return append(b, o.Data...) }

type Header struct {
	TotalSize      uint32
	HeaderSize     uint16
	Version        uint16
	Flags          Flags
	Checksum       uint32
	AppFlashLength uint32
	Entries        []Entry
}

func (h *Header) MemoryLayout() (m MemoryLayout, ok bool) {
	for _, e := range h.Entries {
		if m, ok = e.(MemoryLayout); ok {
			return
		}
	}
	return
}

func (h *Header) FlashRegions() (rs []FlashRegion) {
	for _, e := range h.Entries {
		if r, ok := e.(FlashRegion); ok {
			rs = append(rs, r)
		}
	}
	return
}

func (h *Header) PackageName() string {
	for _, e := range h.Entries {
		if n, ok := e.(PackageName); ok {
			return string(n)
		}
	}
	return ""
}

func (h *Header) FixedAddress() (uint32, bool) {
	for _, e := range h.Entries {
		if a, ok := e.(FixedAddress); ok {
			return uint32(a), true
		}
	}
	return 0, false
}

// ProtectedRegionSize returns the size of the protected region, which is the
// header size if the header does not specify it.
func (h *Header) ProtectedRegionSize() uint32 {
	if m, ok := h.MemoryLayout(); ok && m.ProtectedRegionSize != 0 {
		return m.ProtectedRegionSize
	}
	return uint32(h.HeaderSize)
}

func (h *Header) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TBF header v%d\n", h.Version)
	fmt.Fprintf(&sb, "  total_size:      %10d %#10x\n", h.TotalSize, h.TotalSize)
	fmt.Fprintf(&sb, "  header_size:     %10d %#10x\n", h.HeaderSize, h.HeaderSize)
	fmt.Fprintf(&sb, "  app_flash_len:   %10d %#10x\n", h.AppFlashLength, h.AppFlashLength)
	fmt.Fprintf(&sb, "  flags:           %10s\n", h.Flags)
	fmt.Fprintf(&sb, "  checksum:        %#21x\n", h.Checksum)
	for _, e := range h.Entries {
		switch e := e.(type) {
		case MemoryLayout:
			fmt.Fprintf(&sb, "  %s:\n", e.Type())
			fmt.Fprintf(&sb, "    stack_size:      %8d %#10x\n", e.StackSize, e.StackSize)
			fmt.Fprintf(&sb, "    app_heap_size:   %8d %#10x\n", e.AppHeapSize, e.AppHeapSize)
			fmt.Fprintf(&sb, "    kernel_heap_size:%8d %#10x\n", e.KernelHeapSize, e.KernelHeapSize)
			fmt.Fprintf(&sb, "    minimum_ram_size:%8d %#10x\n", e.MinimumRAMSize, e.MinimumRAMSize)
			fmt.Fprintf(&sb, "    protected_size:  %8d %#10x\n", e.ProtectedRegionSize, e.ProtectedRegionSize)
			fmt.Fprintf(&sb, "    init_fn_offset:  %8d %#10x\n", e.InitFnOffset, e.InitFnOffset)
		case FlashRegion:
			fmt.Fprintf(&sb, "  %s: offset %#x size %d\n", e.Type(), e.Offset, e.Size)
		case PackageName:
			fmt.Fprintf(&sb, "  %s: %s\n", e.Type(), string(e))
		case FixedAddress:
			fmt.Fprintf(&sb, "  %s: %#x\n", e.Type(), uint32(e))
		case Opaque:
			fmt.Fprintf(&sb, "  %s: %d bytes\n", e.Type(), len(e.Data))
		}
	}
	return sb.String()
}

func align4(n int) int { return (n + 3) &^ 3 }
