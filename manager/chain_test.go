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
	"sync"
	"testing"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"go.uber.org/mock/gomock"
)

// testChain is an in-memory host chain. Blocks can be appended and the
// chain can be forked at any height.
type testChain struct {
	mutex  sync.Mutex
	blocks []*chain.Block
	txs    map[common.Hash]*chain.Transaction
	next   uint64 // < counter for unique hashes
}

// newTestChain creates a chain holding only its genesis block.
func newTestChain() *testChain {
	c := &testChain{txs: map[common.Hash]*chain.Transaction{}}
	c.addBlock()
	return c
}

func (c *testChain) newHash(tag byte) common.Hash {
	c.next++
	n := c.next
	return common.Hash{tag, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

// addBlock appends a block containing the given transactions and returns
// its height.
func (c *testChain) addBlock(txs ...*chain.Transaction) uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	block := &chain.Block{
		Hash:   c.newHash('b'),
		Height: uint64(len(c.blocks)),
		Time:   time.Unix(int64(len(c.blocks))*600, 0),
	}
	for _, tx := range txs {
		c.txs[tx.ID] = tx
		block.TxIDs = append(block.TxIDs, tx.ID)
	}
	c.blocks = append(c.blocks, block)
	return block.Height
}

func (c *testChain) addEmptyBlocks(n int) {
	for range n {
		c.addBlock()
	}
}

// fork drops all blocks at and above the given height.
func (c *testChain) fork(height uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.blocks = c.blocks[:height]
}

func (c *testChain) tip() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return uint64(len(c.blocks)) - 1
}

// fund creates a transaction paying to the given addresses, to be spent by
// protocol transactions.
func (c *testChain) fund(addresses ...common.Address) *chain.Transaction {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	tx := &chain.Transaction{
		ID:      c.newHash('f'),
		Inputs:  []chain.TxIn{{Coinbase: true}},
		Outputs: []chain.TxOut{{Value: 1_000_000, Addresses: addresses}},
	}
	c.txs[tx.ID] = tx
	return tx
}

func (c *testChain) newTx(inputs []chain.TxIn, outputs ...chain.TxOut) *chain.Transaction {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return &chain.Transaction{ID: c.newHash('t'), Inputs: inputs, Outputs: outputs}
}

// opTx creates a transaction carrying the operation, spent by the owner and
// paying its change to the receiver, or back to the owner.
func (c *testChain) opTx(owner common.Address, op forge.Operation, burn uint64, receiver common.Address) *chain.Transaction {
	funding := c.fund(owner)
	if receiver == "" {
		receiver = owner
	}
	return c.newTx(
		[]chain.TxIn{{TxID: funding.ID}},
		chain.TxOut{Value: burn, Script: chain.DataScript(forge.Encode(op))},
		chain.TxOut{Value: 5_000, Addresses: []common.Address{receiver}},
	)
}

func (c *testChain) GetBlockCount(context.Context) (uint64, error) {
	return c.tip(), nil
}

func (c *testChain) GetBlockHash(_ context.Context, height uint64) (common.Hash, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if height >= uint64(len(c.blocks)) {
		return common.Hash{}, fmt.Errorf("block height %d out of range", height)
	}
	return c.blocks[height].Hash, nil
}

func (c *testChain) GetBlock(_ context.Context, hash common.Hash) (*chain.Block, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, block := range c.blocks {
		if block.Hash == hash {
			return block, nil
		}
	}
	return nil, chain.ErrNotFound
}

func (c *testChain) GetTransaction(_ context.Context, txid common.Hash) (*chain.Transaction, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	tx, found := c.txs[txid]
	if !found {
		return nil, chain.ErrNotFound
	}
	return tx, nil
}

func (c *testChain) ResolveTxIn(ctx context.Context, in chain.TxIn) ([]common.Address, error) {
	tx, err := c.GetTransaction(ctx, in.TxID)
	if err != nil {
		return nil, err
	}
	if int(in.Vout) >= len(tx.Outputs) {
		return nil, fmt.Errorf("no output %d", in.Vout)
	}
	return tx.Outputs[in.Vout].Addresses, nil
}

// newMockClient creates a mock serving the test chain. Expectations set up
// by prepare take precedence over the chain's answers.
func newMockClient(t *testing.T, c *testChain, prepare ...func(*chain.MockClient)) *chain.MockClient {
	t.Helper()
	client := chain.NewMockClient(gomock.NewController(t))
	for _, p := range prepare {
		p(client)
	}
	client.EXPECT().GetBlockCount(gomock.Any()).DoAndReturn(c.GetBlockCount).AnyTimes()
	client.EXPECT().GetBlockHash(gomock.Any(), gomock.Any()).DoAndReturn(c.GetBlockHash).AnyTimes()
	client.EXPECT().GetBlock(gomock.Any(), gomock.Any()).DoAndReturn(c.GetBlock).AnyTimes()
	client.EXPECT().GetTransaction(gomock.Any(), gomock.Any()).DoAndReturn(c.GetTransaction).AnyTimes()
	client.EXPECT().ResolveTxIn(gomock.Any(), gomock.Any()).DoAndReturn(c.ResolveTxIn).AnyTimes()
	return client
}
