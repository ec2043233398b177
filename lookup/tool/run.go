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
	"errors"
	"fmt"

	"github.com/DarkWingMcQuack/forge-core-sub000/api"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/diagnostics"
	"github.com/DarkWingMcQuack/forge-core-sub000/common/interrupt"
	"github.com/DarkWingMcQuack/forge-core-sub000/manager"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	apiAddrFlag = cli.StringFlag{
		Name:  "api",
		Usage: "address to serve the registry API on, disabled if empty",
		Value: "localhost:8645",
	}
	intervalFlag = cli.DurationFlag{
		Name:  "interval",
		Usage: "period of chain updates, defaults to half the chain's block interval",
	}
)

var RunCmd = cli.Command{
	Action: diagnostics.WithDiagnostics(doRun),
	Name:   "run",
	Usage:  "follows the chain and serves the registry until interrupted",
	Flags: append([]cli.Flag{
		&dataDirFlag,
		&historyFlag,
		&apiAddrFlag,
		&intervalFlag,
	}, chainFlags...),
}

func doRun(context *cli.Context) error {
	ctx := interrupt.CancelOnInterrupt(context.Context)

	m, release, err := openManager(context)
	if err != nil {
		return err
	}
	defer release()
	if err := m.StartUpdater(); err != nil {
		return errors.Join(err, m.Close())
	}

	if addr := context.String(apiAddrFlag.Name); addr != "" {
		err = api.Listen(ctx, addr, m)
	} else {
		<-ctx.Done()
	}
	log.Info("Shutting down")
	return errors.Join(err, m.Close())
}

// openManager creates a manager from the command line flags. The returned
// function closes the chain connection and must be called after the manager
// was closed.
func openManager(context *cli.Context) (*manager.Manager, func(), error) {
	params, err := loadParams(context)
	if err != nil {
		return nil, nil, err
	}
	client, release, err := dialChain(context, params)
	if err != nil {
		return nil, nil, err
	}
	dir := context.String(dataDirFlag.Name)
	h, err := openHistory(dir, context.String(historyFlag.Name))
	if err != nil {
		release()
		return nil, nil, err
	}
	m, err := manager.New(client, manager.Config{
		Params:         params,
		History:        h,
		SnapshotPath:   snapshotPath(dir),
		UpdateInterval: context.Duration(intervalFlag.Name),
	})
	if err != nil {
		release()
		return nil, nil, errors.Join(err, h.Close())
	}
	log.Info("Opened registry", "chain", params.Name, "height", m.BlockHeight(), "datadir", dir)
	return m, release, nil
}

func printReport(report manager.Report) {
	fmt.Printf("processed %s\n", report)
}
