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

//go:generate mockgen -source chain.go -destination chain_mocks.go -package chain

import (
	"context"
	"errors"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
)

// Client provides read access to the host chain. Implementations must be
// safe for concurrent use.
type Client interface {
	// GetBlockCount returns the height of the current chain tip.
	GetBlockCount(ctx context.Context) (uint64, error)
	// GetBlockHash returns the hash of the main-chain block at the given height.
	GetBlockHash(ctx context.Context, height uint64) (common.Hash, error)
	GetBlock(ctx context.Context, hash common.Hash) (*Block, error)
	GetTransaction(ctx context.Context, txid common.Hash) (*Transaction, error)
	// ResolveTxIn returns the addresses owning the output spent by the input.
	ResolveTxIn(ctx context.Context, in TxIn) ([]common.Address, error)
}

// ErrNotFound is returned by clients for unknown blocks and transactions.
var ErrNotFound = errors.New("not found")

type Block struct {
	Hash   common.Hash
	Height uint64
	Time   time.Time
	TxIDs  []common.Hash // < in block order
}

type Transaction struct {
	ID      common.Hash
	Inputs  []TxIn
	Outputs []TxOut
}

type TxIn struct {
	TxID     common.Hash
	Vout     uint32
	Coinbase bool
}

type TxOut struct {
	Value     uint64 // < in the smallest currency unit
	Script    []byte
	Addresses []common.Address
}

// IsData reports whether the output is a provably unspendable data carrier.
func (o *TxOut) IsData() bool {
	return len(o.Script) > 0 && o.Script[0] == opReturn
}

// Payload returns the bytes pushed by a data-carrying output. Scripts
// containing anything but data pushes after the OP_RETURN are rejected.
func (o *TxOut) Payload() ([]byte, bool) {
	if !o.IsData() {
		return nil, false
	}
	return parsePushes(o.Script[1:])
}

// DataOutputs returns the indexes of all data-carrying outputs.
func (t *Transaction) DataOutputs() []int {
	var res []int
	for i := range t.Outputs {
		if t.Outputs[i].IsData() {
			res = append(res, i)
		}
	}
	return res
}
