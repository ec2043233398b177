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
	"os"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/diagnostics"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/interrupt"
	"github.com/DarkWingMcQuack/forge-core-sub000/database/snapshot"
	"github.com/DarkWingMcQuack/forge-core-sub000/lookup"
	"github.com/urfave/cli/v2"
)

var ExportCmd = cli.Command{
	Action:    diagnostics.WithDiagnostics(doExport),
	Name:      "export",
	Usage:     "indexes the chain up to the mature tip and writes a registry snapshot",
	ArgsUsage: "<snapshot file>",
	Flags: append([]cli.Flag{
		&dataDirFlag,
		&historyFlag,
	}, chainFlags...),
}

var InfoCmd = cli.Command{
	Action:    doInfo,
	Name:      "info",
	Usage:     "describes the content of a registry snapshot",
	ArgsUsage: "<snapshot file>",
}

func doExport(context *cli.Context) (err error) {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing snapshot file parameter")
	}
	target := context.Args().Get(0)
	ctx := interrupt.CancelOnInterrupt(context.Context)

	m, release, err := openManager(context)
	if err != nil {
		return err
	}
	defer release()
	defer func() {
		if closeErr := m.Close(); err == nil {
			err = closeErr
		}
	}()

	start := time.Now()
	report, err := m.UpdateLookup(ctx)
	if err != nil {
		if interrupt.IsCancelled(ctx) {
			return interrupt.ErrCanceled
		}
		return err
	}
	printReport(report)
	if err := m.SaveSnapshot(target); err != nil {
		return err
	}
	fmt.Printf("exported registry at height %d to %s in %s\n", m.BlockHeight(), target, formatDuration(time.Since(start)))
	return nil
}

func doInfo(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing snapshot file parameter")
	}
	s, err := snapshot.Load(context.Args().Get(0))
	if err != nil {
		return err
	}

	mutable := lookup.NewMutableEntryLookup(0)
	immutable := lookup.NewImmutableEntryLookup(0)
	tokens := lookup.NewTokenLookup(0)
	if err := s.RestoreInto(mutable, immutable, tokens); err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "chain:             %s\n", s.Chain)
	fmt.Fprintf(out, "next block:        %d\n", s.Height)
	fmt.Fprintf(out, "tip hash:          %v\n", s.TipHash)
	fmt.Fprintf(out, "mutable entries:   %d (%v)\n", mutable.Size(), mutable.GetStateHash())
	fmt.Fprintf(out, "immutable entries: %d (%v)\n", immutable.Size(), immutable.GetStateHash())
	fmt.Fprintf(out, "utility tokens:    %d (%v)\n", tokens.Size(), tokens.GetStateHash())

	mf := common.NewMemoryFootprint(0)
	mf.AddChild("mutable", mutable.GetMemoryFootprint())
	mf.AddChild("immutable", immutable.GetMemoryFootprint())
	mf.AddChild("tokens", tokens.GetMemoryFootprint())
	fmt.Fprint(out, diagnostics.DescribeFootprint(mf))
	return nil
}
