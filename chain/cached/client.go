// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package cached provides a chain.Client keeping recently fetched blocks and
// transactions in memory. Blocks and transactions are immutable once known
// by hash, so only height lookups are always forwarded.
package cached

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

type Client struct {
	client chain.Client
	cache  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ chain.Client = (*Client)(nil)

// Wrap returns a caching client. Results handed out are shared between
// callers and must not be modified.
func Wrap(client chain.Client, expiration, cleanupInterval time.Duration) *Client {
	return &Client{
		client: client,
		cache:  gocache.New(expiration, cleanupInterval),
	}
}

func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	return c.client.GetBlockCount(ctx)
}

func (c *Client) GetBlockHash(ctx context.Context, height uint64) (common.Hash, error) {
	return c.client.GetBlockHash(ctx, height)
}

func (c *Client) GetBlock(ctx context.Context, hash common.Hash) (*chain.Block, error) {
	return get(ctx, c, "b"+hash.String(), func() (*chain.Block, error) {
		return c.client.GetBlock(ctx, hash)
	})
}

func (c *Client) GetTransaction(ctx context.Context, txid common.Hash) (*chain.Transaction, error) {
	return get(ctx, c, "t"+txid.String(), func() (*chain.Transaction, error) {
		return c.client.GetTransaction(ctx, txid)
	})
}

func (c *Client) ResolveTxIn(ctx context.Context, in chain.TxIn) ([]common.Address, error) {
	if in.Coinbase {
		return nil, nil
	}
	tx, err := c.GetTransaction(ctx, in.TxID)
	if err != nil {
		return nil, err
	}
	if int(in.Vout) >= len(tx.Outputs) {
		return nil, fmt.Errorf("transaction %v has no output %d", in.TxID, in.Vout)
	}
	return tx.Outputs[in.Vout].Addresses, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Client) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Client) Size() int {
	return c.cache.ItemCount()
}

func (c *Client) Flush() {
	c.cache.Flush()
}

func get[V any](ctx context.Context, c *Client, key string, fetch func() (V, error)) (V, error) {
	if value, found := c.cache.Get(key); found {
		if v, ok := value.(V); ok {
			c.hits.Add(1)
			return v, nil
		}
	}
	c.misses.Add(1)
	value, err := fetch()
	if err != nil {
		return value, err
	}
	if ctx.Err() == nil {
		c.cache.SetDefault(key, value)
	}
	return value, nil
}
