// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flash converts TBF packages to the formats accepted by flash
// programmers and bootloaders.
package flash

import (
	"errors"
	"io"

	"github.com/marcinbor85/gohex"

	"github.com/embeddedgo/tabtool/tabtool/internal/tbf"
)

var (
	ErrNoAddress     = errors.New("flash: no load address")
	ErrUnknownFamily = errors.New("flash: unknown UF2 family")
	ErrMalformedUF2  = errors.New("flash: malformed UF2")
)

// HexLineLen is the number of data bytes in one Intel HEX record.
const HexLineLen = 16

// WriteHex writes data, to be placed at addr, in the Intel HEX format.
func WriteHex(w io.Writer, addr uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(addr, data); err != nil {
		return err
	}
	return mem.DumpIntelHex(w, HexLineLen)
}

// Address returns the flash address of the TBF package pkg. If addr is not
// nil it takes precedence over the fixed address stored in the header.
func Address(addr *uint32, pkg []byte) (uint32, error) {
	if addr != nil {
		return *addr, nil
	}
	h, err := tbf.Parse(pkg)
	if err != nil {
		return 0, err
	}
	fa, ok := h.FixedAddress()
	if !ok {
		return 0, ErrNoAddress
	}
	return fa, nil
}
