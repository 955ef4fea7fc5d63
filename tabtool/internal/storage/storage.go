// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage reads the input files and writes the results.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/embeddedgo/tabtool/tabtool/internal/pack"
)

var (
	ErrIO        = errors.New("storage: I/O failure")
	ErrSameFiles = errors.New("storage: output would overwrite an input")
)

type Store struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs}
}

func ioErr(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrIO, op, name, err)
}

// ReadInputs reads the named ELF files.
func (s *Store) ReadInputs(names []string) ([]pack.Input, error) {
	ins := make([]pack.Input, len(names))
	for i, name := range names {
		data, err := afero.ReadFile(s.fs, name)
		if err != nil {
			return nil, ioErr("read", name, err)
		}
		ins[i] = pack.Input{ID: name, Data: data}
	}
	return ins, nil
}

func (s *Store) ReadFile(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, ioErr("read", name, err)
	}
	return data, nil
}

// WriteFile writes data to a temporary file and renames it to name.
func (s *Store) WriteFile(name string, data []byte) error {
	dir := filepath.Dir(name)
	f, err := afero.TempFile(s.fs, dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return ioErr("create", name, err)
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.fs.Chmod(tmp, 0o644)
	}
	if err == nil {
		err = s.fs.Rename(tmp, name)
	}
	if err != nil {
		s.fs.Remove(tmp)
		return ioErr("write", name, err)
	}
	return nil
}

// PackagePath returns the path of the TBF file written next to the input.
func PackagePath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".tbf"
}

// CheckOutputs returns ErrSameFiles if any of the files written for the
// inputs would replace one of the inputs or the output archive.
func CheckOutputs(inputs []string, output string) error {
	in := make(map[string]bool, len(inputs))
	for _, name := range inputs {
		in[filepath.Clean(name)] = true
	}
	if in[filepath.Clean(output)] {
		return fmt.Errorf("%w: %s", ErrSameFiles, output)
	}
	for _, name := range inputs {
		p := filepath.Clean(PackagePath(name))
		if p == filepath.Clean(output) || in[p] {
			return fmt.Errorf("%w: %s", ErrSameFiles, p)
		}
	}
	return nil
}
