// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flash

import (
	"bytes"
	"strings"
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/tabtool/tabtool/internal/tbf"
)

func u32(v uint32) *uint32 { return &v }

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestWriteHex(t *testing.T) {
	data := pattern(100)
	var buf bytes.Buffer
	require.NoError(t, WriteHex(&buf, 0x40000, data))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, ":00000001FF", strings.TrimSpace(lines[len(lines)-1]))

	mem := gohex.NewMemory()
	require.NoError(t, mem.ParseIntelHex(&buf))
	segs := mem.GetDataSegments()
	require.Len(t, segs, 1)
	assert.Equal(t, uint32(0x40000), segs[0].Address)
	assert.Equal(t, data, segs[0].Data)
}

func TestWriteUF2(t *testing.T) {
	data := pattern(600)
	var buf bytes.Buffer
	require.NoError(t, WriteUF2(&buf, 0x10000000, 0xe48bff56, data))
	require.Equal(t, 3*UF2BlockSize, buf.Len())

	blocks, err := ReadUF2(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	var got []byte
	for i, b := range blocks {
		assert.Equal(t, uint32(0x10000000+i*UF2PayloadSize), b.Addr)
		assert.Equal(t, uint32(i), b.Seq)
		assert.Equal(t, uint32(3), b.Total)
		assert.Equal(t, uint32(0xe48bff56), b.Family)
		got = append(got, b.Data...)
	}
	assert.Equal(t, data, got[:len(data)])
	assert.Equal(t, make([]byte, 3*UF2PayloadSize-len(data)), got[len(data):])
}

func TestReadUF2Malformed(t *testing.T) {
	_, err := ReadUF2(make([]byte, 100))
	require.ErrorIs(t, err, ErrMalformedUF2)
	_, err = ReadUF2(make([]byte, UF2BlockSize))
	require.ErrorIs(t, err, ErrMalformedUF2)
}

func TestFamily(t *testing.T) {
	id, err := Family("RP2040")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xe48bff56), id)
	id, err = Family("0x12345678")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), id)
	_, err = Family("z80")
	require.ErrorIs(t, err, ErrUnknownFamily)
	assert.Contains(t, Families(), "nrf52840")
}

func pkg(t *testing.T, fixed *uint32) []byte {
	t.Helper()
	h, err := tbf.Synthesize(&tbf.Params{ImageLen: 16, FixedAddress: fixed, PowerOfTwo: true})
	require.NoError(t, err)
	b, err := h.MarshalBinary()
	require.NoError(t, err)
	return append(b, make([]byte, int(h.TotalSize)-len(b))...)
}

func TestAddress(t *testing.T) {
	a, err := Address(nil, pkg(t, u32(0x30000)))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x30000), a)

	a, err = Address(u32(0x50000), pkg(t, u32(0x30000)))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x50000), a)

	_, err = Address(nil, pkg(t, nil))
	require.ErrorIs(t, err, ErrNoAddress)

	_, err = Address(nil, []byte("not a package"))
	require.ErrorIs(t, err, tbf.ErrMalformedHeader)
}
