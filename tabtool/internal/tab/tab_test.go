// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tab

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/tabtool/tabtool/internal/elftest"
	"github.com/embeddedgo/tabtool/tabtool/internal/pack"
)

func elfFile(fill byte) []byte {
	text := elftest.Text(".text", elftest.Fill(40, fill))
	data := elftest.Data(".data", elftest.Fill(8, fill+1))
	return elftest.Build(0, text, data, elftest.BSS(".bss", 32))
}

func packages(t *testing.T, name string, ids ...string) []*pack.Package {
	t.Helper()
	p := pack.New(pack.Options{
		StackSize:   1024,
		AppHeapSize: 512,
		PackageName: name,
		PowerOfTwo:  true,
	}, nil)
	inputs := make([]pack.Input, len(ids))
	for i, id := range ids {
		inputs[i] = pack.Input{ID: id, Data: elfFile(byte(i))}
	}
	pkgs, err := p.PackageAll(context.Background(), inputs)
	require.NoError(t, err)
	return pkgs
}

type tarEntry struct {
	hdr  *tar.Header
	data []byte
}

func readTar(t *testing.T, b []byte) []tarEntry {
	t.Helper()
	var es []tarEntry
	tr := tar.NewReader(bytes.NewReader(b))
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return es
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		es = append(es, tarEntry{h, data})
	}
}

func TestTwoArchitectures(t *testing.T) {
	pkgs := packages(t, "blink", "build/cortex-m0.elf", "build/cortex-m4.elf")
	var buf bytes.Buffer
	require.NoError(t, Assemble(&buf, pkgs, Options{PackageName: "blink"}))

	es := readTar(t, buf.Bytes())
	require.Len(t, es, 2)
	assert.Equal(t, "blink.cortex-m0.tbf", es[0].hdr.Name)
	assert.Equal(t, "blink.cortex-m4.tbf", es[1].hdr.Name)

	b, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Nil(t, b.Metadata)
	require.Len(t, b.Entries, 2)
	for i, e := range b.Entries {
		assert.Equal(t, "blink", e.Header.PackageName())
		want, err := pkgs[i].Bytes()
		require.NoError(t, err)
		assert.Equal(t, want, e.Data)
		assert.Equal(t, e.Header.TotalSize, uint32(len(e.Data)))
	}
}

func TestDefaultNames(t *testing.T) {
	pkgs := packages(t, "", "a/rv32imc.elf", "b/cortex-m3.elf")
	var buf bytes.Buffer
	require.NoError(t, Assemble(&buf, pkgs, Options{}))
	es := readTar(t, buf.Bytes())
	require.Len(t, es, 2)
	assert.Equal(t, "rv32imc.tbf", es[0].hdr.Name)
	assert.Equal(t, "cortex-m3.tbf", es[1].hdr.Name)
}

func TestDuplicateArchitectureName(t *testing.T) {
	for _, name := range []string{"", "blink"} {
		pkgs := packages(t, name, "one/cortex-m4.elf", "two/cortex-m4.elf")
		var buf bytes.Buffer
		err := Assemble(&buf, pkgs, Options{PackageName: name, Metadata: true})
		require.ErrorIs(t, err, ErrDuplicateArchitectureName)
		assert.Contains(t, err.Error(), "two/cortex-m4.elf")
		assert.Zero(t, buf.Len(), "partial archive written")
	}
}

func TestDeterministic(t *testing.T) {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	build := func(now time.Time) []byte {
		pkgs := packages(t, "blink", "cortex-m4.elf", "rv32imac.elf")
		var buf bytes.Buffer
		err := Assemble(&buf, pkgs, Options{
			Deterministic: true,
			Metadata:      true,
			PackageName:   "blink",
			Now:           func() time.Time { return now },
		})
		require.NoError(t, err)
		return buf.Bytes()
	}
	a := build(clock)
	b := build(clock.Add(time.Hour))
	assert.Equal(t, a, b)

	es := readTar(t, a)
	require.Len(t, es, 3)
	assert.Equal(t, MetadataName, es[0].hdr.Name)
	assert.NotContains(t, string(es[0].data), "build-date")
	for _, e := range es {
		assert.True(t, epoch.Equal(e.hdr.ModTime), "mtime %v", e.hdr.ModTime)
		assert.Equal(t, 0, e.hdr.Uid)
		assert.Equal(t, int64(0o644), e.hdr.Mode)
	}
}

func TestMetadata(t *testing.T) {
	clock := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	pkgs := packages(t, "sensors", "cortex-m4.elf")
	var buf bytes.Buffer
	err := Assemble(&buf, pkgs, Options{
		Metadata:      true,
		PackageName:   "sensors",
		OnlyForBoards: []string{"hail", "imix"},
		Now:           func() time.Time { return clock },
	})
	require.NoError(t, err)

	es := readTar(t, buf.Bytes())
	require.Len(t, es, 2)
	assert.True(t, clock.Equal(es[1].hdr.ModTime))
	md := string(es[0].data)
	assert.Contains(t, md, "tab-version = 1")
	assert.Contains(t, md, `name = "sensors"`)
	assert.Contains(t, md, `only-for-boards = "hail,imix"`)
	assert.Contains(t, md, "build-date = 2026-10-19T12:30:00Z")

	b, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.NotNil(t, b.Metadata)
	assert.Equal(t, "sensors", b.Metadata.Name)
	assert.Equal(t, 1, b.Metadata.TABVersion)
	require.NotNil(t, b.Metadata.BuildDate)
	assert.True(t, clock.Equal(*b.Metadata.BuildDate))
	require.Len(t, b.Entries, 1)
	assert.Equal(t, "sensors.cortex-m4.tbf", b.Entries[0].Name)
}

func TestReadRejectsBadPackage(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: "x.tbf", Size: 4, Mode: 0o644}))
	_, err := tw.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	_, err = Read(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x.tbf")
}
