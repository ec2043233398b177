// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package manager

import (
	"context"
	"fmt"

	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/DarkWingMcQuack/forge-core-sub000/lookup"
)

// candidate is an operation found in a block, not yet checked against the
// registry state.
type candidate struct {
	op     forge.Operation
	origin lookup.Origin
}

// blockCandidates is everything needed to apply one block.
type blockCandidates struct {
	height     uint64
	hash       common.Hash
	candidates []candidate
}

// fetchBlock collects the candidate operations of the block at the given
// height. It performs all chain I/O for the block and does not touch the
// registry state.
func (m *Manager) fetchBlock(ctx context.Context, height uint64) (*blockCandidates, error) {
	hash, err := m.client.GetBlockHash(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("failed to get hash of block %d: %w", height, err)
	}
	block, err := m.client.GetBlock(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d (%v): %w", height, hash, err)
	}
	res := &blockCandidates{height: height, hash: hash}
	for position, txid := range block.TxIDs {
		tx, err := m.client.GetTransaction(ctx, txid)
		if err != nil {
			return nil, fmt.Errorf("failed to get transaction %v of block %d: %w", txid, height, err)
		}
		c, found, err := m.extract(ctx, tx, height, position)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect transaction %v of block %d: %w", txid, height, err)
		}
		if found {
			res.candidates = append(res.candidates, c)
		}
	}
	return res, nil
}

// extract derives the candidate operation of a transaction, if any. Only
// errors of the chain client are reported; transactions not following the
// protocol are skipped.
func (m *Manager) extract(ctx context.Context, tx *chain.Transaction, height uint64, position int) (candidate, bool, error) {
	if len(tx.Inputs) != 1 || tx.Inputs[0].Coinbase {
		return candidate{}, false, nil
	}
	data := tx.DataOutputs()
	if len(data) != 1 {
		return candidate{}, false, nil
	}
	out := &tx.Outputs[data[0]]
	payload, ok := out.Payload()
	if !ok || !forge.IsProtocolPayload(payload) {
		return candidate{}, false, nil
	}
	op, ok := forge.Decode(payload)
	if !ok {
		m.log.Debug("Skipping malformed operation", "tx", tx.ID, "payload", fmt.Sprintf("%x", payload))
		return candidate{}, false, nil
	}

	owners, err := m.client.ResolveTxIn(ctx, tx.Inputs[0])
	if err != nil {
		return candidate{}, false, err
	}
	if len(owners) != 1 || owners[0].IsEmpty() {
		return candidate{}, false, nil
	}

	origin := lookup.Origin{
		Owner:    owners[0],
		Block:    height,
		Burn:     out.Value,
		Position: position,
	}
	if op.Kind() == forge.OwnershipTransfer {
		receiver, found := newOwner(tx, data[0])
		if !found {
			return candidate{}, false, nil
		}
		origin.NewOwner = receiver
	}
	return candidate{op: op, origin: origin}, true, nil
}

// newOwner returns the receiver of a transfer: the only address of the only
// output not carrying data. Any other output layout leaves the receiver
// ambiguous.
func newOwner(tx *chain.Transaction, dataOutput int) (common.Address, bool) {
	if len(tx.Outputs) != 2 {
		return "", false
	}
	addresses := tx.Outputs[1-dataOutput].Addresses
	if len(addresses) != 1 || addresses[0].IsEmpty() {
		return "", false
	}
	return addresses[0], true
}
