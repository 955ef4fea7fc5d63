// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/embeddedgo/tabtool/tabtool/internal/object"
)

type PersistentRegion struct {
	Offset uint32 // offset in the image
	Size   uint32
}

type Image struct {
	Bytes   []byte
	Offsets map[int]uint32 // section index -> offset in the image
	Regions []PersistentRegion
}

// Offset returns the offset of the section s in the image.
func (im *Image) Offset(s *object.Section) (uint32, bool) {
	o, ok := im.Offsets[s.Index]
	return o, ok
}

// Build concatenates the data of the selected sections, without any padding
// between them. The data is taken from the object file content.
func Build(data []byte, sel *Selection, logger log.Logger) (*Image, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	ss := sel.Sections()
	var size uint64
	for _, s := range ss {
		size += s.Size
	}
	if size > 1<<32-1 {
		return nil, fmt.Errorf("layout: image size %d does not fit in 32 bits", size)
	}
	im := &Image{
		Bytes:   make([]byte, 0, size),
		Offsets: make(map[int]uint32, len(ss)),
	}
	for _, s := range ss {
		end := s.Offset + s.Size
		if end < s.Offset || end > uint64(len(data)) {
			return nil, &object.SectionError{Section: s.Name, Err: fmt.Errorf(
				"%w: %#x+%#x, file size %#x",
				ErrTruncatedSectionData, s.Offset, s.Size, len(data),
			)}
		}
		off := uint32(len(im.Bytes))
		if off&3 != 0 {
			level.Warn(logger).Log(
				"msg", "section placed at unaligned offset",
				"section", s.Name, "offset", fmt.Sprintf("%#x", off),
			)
		}
		level.Debug(logger).Log(
			"msg", "adding section", "section", s.Name,
			"offset", off, "size", s.Size,
		)
		im.Offsets[s.Index] = off
		im.Bytes = append(im.Bytes, data[s.Offset:end]...)
	}
	for _, s := range sel.Persistent {
		im.Regions = append(im.Regions, PersistentRegion{
			Offset: im.Offsets[s.Index],
			Size:   uint32(s.Size),
		})
	}
	return im, nil
}
