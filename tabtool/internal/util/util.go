// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/alecthomas/kingpin.v2"
)

// RunFunc runs a parsed command.
type RunFunc func(ctx context.Context, logger log.Logger) error

// Tool describes one tabtool command.
type Tool struct {
	Descr    string
	Register func(cmd *kingpin.CmdClause) RunFunc
}

var exit = os.Exit

// NewLogger returns a logfmt logger writing to w. Debug messages are dropped
// unless verbose is set.
func NewLogger(w io.Writer, verbose bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	if verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

// Warn logs a warning.
func Warn(logger log.Logger, msg string, keyvals ...any) {
	level.Warn(logger).Log(append([]any{"msg", msg}, keyvals...)...)
}

// FatalErr logs err and exits the program if the err != nil.
func FatalErr(logger log.Logger, what string, err error) {
	if err == nil {
		return
	}
	kv := []any{"err", err}
	if what != "" {
		kv = append([]any{"op", what}, kv...)
	}
	level.Error(logger).Log(kv...)
	exit(1)
}

// OutName returns outName or, if it is empty, inName with inSuffix replaced by
// outSuffix.
func OutName(inName, inSuffix, outName, outSuffix string) string {
	if outName != "" {
		return outName
	}
	return strings.TrimSuffix(inName, inSuffix) + outSuffix
}
