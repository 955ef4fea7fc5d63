// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"maps"
	"os"
	"os/signal"
	"slices"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/embeddedgo/tabtool/tabtool/internal/cmd/convert"
	"github.com/embeddedgo/tabtool/tabtool/internal/cmd/dump"
	"github.com/embeddedgo/tabtool/tabtool/internal/cmd/tab"
	"github.com/embeddedgo/tabtool/tabtool/internal/util"
)

var tools = map[string]util.Tool{
	"convert": {Descr: convert.Descr, Register: convert.Register},
	"dump":    {Descr: dump.Descr, Register: dump.Register},
	"tab":     {Descr: tab.Descr, Register: tab.Register},
}

func main() {
	app := kingpin.New("tabtool", "Tock application bundle tool.")
	app.HelpFlag.Short('h')
	verbose := app.Flag("verbose", "Enable debug logging.").Short('v').Bool()

	runs := make(map[string]util.RunFunc, len(tools))
	for _, name := range slices.Sorted(maps.Keys(tools)) {
		t := tools[name]
		cmd := app.Command(name, t.Descr)
		runs[cmd.FullCommand()] = t.Register(cmd)
	}
	parsed := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := util.NewLogger(os.Stderr, *verbose)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := runs[parsed](ctx, logger)
	stop()
	util.FatalErr(logger, parsed, err)
}
