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
	"path/filepath"
	"strings"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/ldb"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/memory"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/sqlite"
	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/chain/bitcoind"
	"github.com/DarkWingMcQuack/forge-core-sub000/chain/cached"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	chainFlag = cli.StringFlag{
		Name:  "chain",
		Usage: fmt.Sprintf("name of the host chain, one of %s", strings.Join(chain.KnownParams(), ", ")),
		Value: "bitcoin",
	}
	paramsFlag = cli.StringFlag{
		Name:  "params",
		Usage: "YAML file with chain parameters, overrides --chain",
	}
	rpcURLFlag = cli.StringFlag{
		Name:  "rpc-url",
		Usage: "URL of the chain node's JSON-RPC endpoint, defaults to localhost and the chain's RPC port",
	}
	rpcUserFlag = cli.StringFlag{
		Name:    "rpc-user",
		Usage:   "user name for the chain node",
		EnvVars: []string{"FORGE_RPC_USER"},
	}
	rpcPasswordFlag = cli.StringFlag{
		Name:    "rpc-password",
		Usage:   "password for the chain node",
		EnvVars: []string{"FORGE_RPC_PASSWORD"},
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "directory for the block history and registry snapshot, in-memory only if empty",
	}
	historyFlag = cli.StringFlag{
		Name:  "history",
		Usage: "block history backend: leveldb or sqlite",
		Value: "leveldb",
	}
	cacheExpirationFlag = cli.DurationFlag{
		Name:  "cache-expiration",
		Usage: "how long fetched blocks and transactions are cached, 0 disables the cache",
		Value: cached.DefaultExpiration,
	}
)

var chainFlags = []cli.Flag{
	&chainFlag,
	&paramsFlag,
	&rpcURLFlag,
	&rpcUserFlag,
	&rpcPasswordFlag,
	&cacheExpirationFlag,
}

func setupLogging(context *cli.Context) error {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(context.Int(verbosityFlag.Name)), true)
	log.SetDefault(log.NewLogger(handler))
	return nil
}

func loadParams(context *cli.Context) (chain.Params, error) {
	if path := context.String(paramsFlag.Name); path != "" {
		return chain.LoadParams(path)
	}
	return chain.GetParams(context.String(chainFlag.Name))
}

// dialChain connects to the chain node, with a cache in front of it unless
// disabled. The returned function releases the connection.
func dialChain(context *cli.Context, params chain.Params) (chain.Client, func(), error) {
	url := context.String(rpcURLFlag.Name)
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d", params.RPCDefaultPort)
	}
	node, err := bitcoind.Dial(context.Context, bitcoind.Config{
		URL:      url,
		User:     context.String(rpcUserFlag.Name),
		Password: context.String(rpcPasswordFlag.Name),
	})
	if err != nil {
		return nil, nil, err
	}
	expiration := context.Duration(cacheExpirationFlag.Name)
	if expiration <= 0 {
		return node, node.Close, nil
	}
	client := cached.Wrap(node, expiration, cached.DefaultCleanupInterval)
	return client, func() {
		hits, misses := client.Stats()
		log.Debug("Chain cache statistics", "hits", hits, "misses", misses)
		node.Close()
	}, nil
}

// openHistory opens the block history in the data directory, or an
// in-memory one if no directory is given.
func openHistory(dir, backend string) (history.History, error) {
	if dir == "" {
		return memory.NewHistory(), nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	switch backend {
	case "leveldb":
		return ldb.Open(filepath.Join(dir, "history"))
	case "sqlite":
		return sqlite.Open(filepath.Join(dir, "history.sqlite"))
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

func snapshotPath(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "registry.snapshot")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
