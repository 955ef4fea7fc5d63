// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tab assembles TBF packages into a Tock Application Bundle: an
// uncompressed tar archive.
package tab

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/embeddedgo/tabtool/tabtool/internal/pack"
)

const (
	Ext          = ".tbf"
	MetadataName = "metadata.toml"
	TABVersion   = 1
)

var ErrDuplicateArchitectureName = errors.New("tab: duplicate architecture name")

// epoch is the modification time of all entries in a deterministic archive.
var epoch = time.Unix(1153704088, 0)

type Options struct {
	// Deterministic fixes the metadata of all entries so the same packages
	// always produce the same archive.
	Deterministic bool

	// Metadata adds the metadata.toml file as the first entry.
	Metadata      bool
	PackageName   string
	OnlyForBoards []string

	// Now returns the current time, time.Now if nil.
	Now func() time.Time
}

// Metadata is the content of the metadata.toml entry.
type Metadata struct {
	TABVersion    int        `toml:"tab-version"`
	Name          string     `toml:"name"`
	OnlyForBoards string     `toml:"only-for-boards"`
	BuildDate     *time.Time `toml:"build-date,omitempty"`
}

// EntryName returns the name of the archive entry for the package.
func EntryName(p *pack.Package, packageName string) string {
	if packageName == "" {
		return p.Arch + Ext
	}
	return packageName + "." + p.Arch + Ext
}

// Assemble writes the archive containing pkgs to w, in the pkgs order. Nothing
// is written if an error is returned.
func Assemble(w io.Writer, pkgs []*pack.Package, o Options) error {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	mtime := now().UTC().Truncate(time.Second)
	if o.Deterministic {
		mtime = epoch
	}

	names := make([]string, len(pkgs))
	seen := make(map[string]string, len(pkgs))
	for i, p := range pkgs {
		name := EntryName(p, o.PackageName)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s (inputs %s and %s)", ErrDuplicateArchitectureName, name, prev, p.Input)
		}
		seen[name] = p.Input
		names[i] = name
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if o.Metadata {
		md := Metadata{
			TABVersion:    TABVersion,
			Name:          o.PackageName,
			OnlyForBoards: strings.Join(o.OnlyForBoards, ","),
		}
		if !o.Deterministic {
			md.BuildDate = &mtime
		}
		var mb bytes.Buffer
		if err := toml.NewEncoder(&mb).Encode(md); err != nil {
			return err
		}
		if err := writeEntry(tw, MetadataName, mtime, mb.Bytes()); err != nil {
			return err
		}
	}
	for i, p := range pkgs {
		b, err := p.Bytes()
		if err != nil {
			return &pack.InputError{Input: p.Input, Err: err}
		}
		if err := writeEntry(tw, names[i], mtime, b); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeEntry(tw *tar.Writer, name string, mtime time.Time, data []byte) error {
	err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     int64(len(data)),
		Mode:     0o644,
		ModTime:  mtime,
		Format:   tar.FormatGNU,
	})
	if err != nil {
		return err
	}
	_, err = tw.Write(data)
	return err
}
