// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Params is the static parameter table of a host chain.
type Params struct {
	Name string `yaml:"name"`
	// MaturityDepth is the number of confirmations a block needs before it
	// is indexed.
	MaturityDepth uint64 `yaml:"maturity_depth"`
	// ValidityWindow is the number of blocks an entry stays alive after its
	// activation block.
	ValidityWindow  uint64        `yaml:"validity_window"`
	DefaultFee      uint64        `yaml:"default_fee"`
	BlockInterval   time.Duration `yaml:"block_interval"`
	MinimumTxAmount uint64        `yaml:"minimum_tx_amount"`
	StartHeight     uint64        `yaml:"start_height"`
	RPCDefaultPort  uint16        `yaml:"rpc_default_port"`
}

var builtin = map[string]Params{
	"bitcoin": {
		Name:            "bitcoin",
		MaturityDepth:   6,
		ValidityWindow:  52_560,
		DefaultFee:      1_000,
		BlockInterval:   10 * time.Minute,
		MinimumTxAmount: 546,
		StartHeight:     620_000,
		RPCDefaultPort:  8332,
	},
	"bitcoin-testnet": {
		Name:            "bitcoin-testnet",
		MaturityDepth:   6,
		ValidityWindow:  52_560,
		DefaultFee:      1_000,
		BlockInterval:   10 * time.Minute,
		MinimumTxAmount: 546,
		StartHeight:     1_700_000,
		RPCDefaultPort:  18332,
	},
	"litecoin": {
		Name:            "litecoin",
		MaturityDepth:   12,
		ValidityWindow:  210_240,
		DefaultFee:      10_000,
		BlockInterval:   150 * time.Second,
		MinimumTxAmount: 5_460,
		StartHeight:     1_800_000,
		RPCDefaultPort:  9332,
	},
	"regtest": {
		Name:            "regtest",
		MaturityDepth:   1,
		ValidityWindow:  100,
		DefaultFee:      1_000,
		BlockInterval:   2 * time.Second,
		MinimumTxAmount: 546,
		RPCDefaultPort:  18443,
	},
}

// KnownParams lists the names of the built-in parameter tables.
func KnownParams() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetParams returns the built-in parameters of the named chain.
func GetParams(name string) (Params, error) {
	params, found := builtin[strings.ToLower(name)]
	if !found {
		return Params{}, fmt.Errorf("unknown chain %q, known chains: %s", name, strings.Join(KnownParams(), ", "))
	}
	return params, nil
}

// LoadParams reads a parameter table from a YAML file. Fields missing from
// the file are taken from the built-in table named by the file, if any.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}
	return ParseParams(data)
}

func ParseParams(data []byte) (Params, error) {
	var named struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &named); err != nil {
		return Params{}, fmt.Errorf("invalid chain parameters: %w", err)
	}
	params := builtin[strings.ToLower(named.Name)]
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Params{}, fmt.Errorf("invalid chain parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

func (p Params) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("chain parameters lack a name")
	}
	if p.ValidityWindow == 0 {
		return fmt.Errorf("chain %s: validity window must be positive", p.Name)
	}
	if p.BlockInterval <= 0 {
		return fmt.Errorf("chain %s: block interval must be positive", p.Name)
	}
	return nil
}

// SafeTip returns the highest block height that may be indexed given the
// current chain height, and false if no block is mature yet.
func (p Params) SafeTip(chainHeight uint64) (uint64, bool) {
	if chainHeight < p.MaturityDepth {
		return 0, false
	}
	return chainHeight - p.MaturityDepth, true
}
