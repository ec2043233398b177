// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	_ "net/http/pprof"
	"os"

	"github.com/DarkWingMcQuack/forge-core-sub000/common/diagnostics"
	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./lookup/tool <command> <flags>

var commands = []*cli.Command{
	&RunCmd,
	&ExportCmd,
	&InfoCmd,
	&DecodeCmd,
	&EncodeCmd,
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "tool",
		Usage:     "forge registry indexer toolbox",
		Copyright: "(c) 2025 Sonic Operations Ltd",
		Flags: append([]cli.Flag{
			&verbosityFlag,
		}, diagnostics.Flags()...),
		Before:   setupLogging,
		Commands: commands,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
