// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tab

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/embeddedgo/tabtool/tabtool/internal/tbf"
)

// Entry is a TBF package read from an archive.
type Entry struct {
	Name   string
	Header *tbf.Header
	Data   []byte // whole package, header included
}

type Bundle struct {
	Metadata *Metadata
	Entries  []Entry
}

// Read reads the archive from r. Entries other than metadata.toml and *.tbf
// are skipped.
func Read(r io.Reader) (*Bundle, error) {
	b := new(Bundle)
	tr := tar.NewReader(r)
	for {
		th, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		if err != nil {
			return nil, err
		}
		if th.Typeflag != tar.TypeReg {
			continue
		}
		switch {
		case th.Name == MetadataName:
			md := new(Metadata)
			if _, err := toml.NewDecoder(tr).Decode(md); err != nil {
				return nil, fmt.Errorf("tab: %s: %w", th.Name, err)
			}
			b.Metadata = md
		case strings.HasSuffix(th.Name, Ext):
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			h, err := tbf.Parse(data)
			if err != nil {
				return nil, fmt.Errorf("tab: %s: %w", th.Name, err)
			}
			b.Entries = append(b.Entries, Entry{th.Name, h, data})
		}
	}
}
