// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/embeddedgo/tabtool/tabtool/internal/storage"
	"github.com/embeddedgo/tabtool/tabtool/internal/tab"
	"github.com/embeddedgo/tabtool/tabtool/internal/tbf"
	"github.com/embeddedgo/tabtool/tabtool/internal/util"
)

const Descr = "print the TBF headers stored in TBF or TAB files"

func Register(cmd *kingpin.CmdClause) util.RunFunc {
	var (
		files   []string
		headers bool
	)
	cmd.Flag("headers", "Print every header field.").BoolVar(&headers)
	cmd.Arg("file", "TBF or TAB files.").Required().StringsVar(&files)
	return func(ctx context.Context, logger log.Logger) error {
		return Dump(os.Stdout, afero.NewOsFs(), files, headers)
	}
}

// Dump prints a summary table of the packages in files. If headers is set
// every header is printed in full after the table.
func Dump(w io.Writer, fs afero.Fs, files []string, headers bool) error {
	st := storage.New(fs)
	var entries []tab.Entry
	for _, name := range files {
		data, err := st.ReadFile(name)
		if err != nil {
			return err
		}
		if strings.EqualFold(filepath.Ext(name), ".tab") {
			b, err := tab.Read(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if md := b.Metadata; md != nil {
				fmt.Fprintf(w, "%s: tab-version %d, name %q", name, md.TABVersion, md.Name)
				if md.OnlyForBoards != "" {
					fmt.Fprintf(w, ", boards %s", md.OnlyForBoards)
				}
				if md.BuildDate != nil {
					fmt.Fprintf(w, ", built %s", humanize.Time(*md.BuildDate))
				}
				fmt.Fprintln(w)
			}
			for _, e := range b.Entries {
				e.Name = name + ":" + e.Name
				entries = append(entries, e)
			}
			continue
		}
		h, err := tbf.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		entries = append(entries, tab.Entry{Name: name, Header: h, Data: data})
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Package", "Name", "Total", "Header", "Protected", "Flash", "Min RAM", "Flags"})
	for _, e := range entries {
		h := e.Header
		ram := "-"
		if ml, ok := h.MemoryLayout(); ok {
			ram = humanize.IBytes(uint64(ml.MinimumRAMSize))
		}
		table.Append([]string{
			e.Name,
			h.PackageName(),
			humanize.IBytes(uint64(h.TotalSize)),
			fmt.Sprintf("%d", h.HeaderSize),
			fmt.Sprintf("%d", h.ProtectedRegionSize()),
			humanize.IBytes(uint64(h.AppFlashLength)),
			ram,
			h.Flags.String(),
		})
	}
	table.Render()

	if headers {
		for _, e := range entries {
			fmt.Fprintf(w, "\n%s:\n%s", e.Name, e.Header)
		}
	}
	return nil
}
