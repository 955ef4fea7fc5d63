// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInputs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/build/a.elf", []byte("aaa"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/build/b.elf", []byte("bb"), 0o644))
	s := New(fs)

	ins, err := s.ReadInputs([]string{"/build/b.elf", "/build/a.elf"})
	require.NoError(t, err)
	require.Len(t, ins, 2)
	assert.Equal(t, "/build/b.elf", ins[0].ID)
	assert.Equal(t, []byte("bb"), ins[0].Data)
	assert.Equal(t, []byte("aaa"), ins[1].Data)

	_, err = s.ReadInputs([]string{"/build/missing.elf"})
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "missing.elf")
}

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))
	s := New(fs)

	require.NoError(t, s.WriteFile("/out/app.tab", []byte("first")))
	require.NoError(t, s.WriteFile("/out/app.tab", []byte("second")))
	data, err := s.ReadFile("/out/app.tab")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFileReadOnly(t *testing.T) {
	s := New(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	err := s.WriteFile("/app.tab", []byte("x"))
	require.ErrorIs(t, err, ErrIO)
}

func TestPackagePath(t *testing.T) {
	assert.Equal(t, "build/cortex-m4.tbf", PackagePath("build/cortex-m4.elf"))
	assert.Equal(t, "app.tbf", PackagePath("app"))
}

func TestCheckOutputs(t *testing.T) {
	assert.NoError(t, CheckOutputs([]string{"a.elf", "b.elf"}, "app.tab"))
	assert.ErrorIs(t, CheckOutputs([]string{"a.elf"}, "a.tbf"), ErrSameFiles)
	assert.ErrorIs(t, CheckOutputs([]string{"a.elf"}, "./a.elf"), ErrSameFiles)
	assert.ErrorIs(t, CheckOutputs([]string{"a.elf", "a.tbf"}, "app.tab"), ErrSameFiles)
}
