// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package bitcoind implements a chain.Client talking to a bitcoind-compatible
// node over JSON-RPC.
package bitcoind

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// errInvalidAddressOrKey is the node's error code for unknown blocks and
// transactions.
const errInvalidAddressOrKey = -5

type Config struct {
	URL      string
	User     string
	Password string
}

type Client struct {
	client *rpc.Client
	log    log.Logger
}

var _ chain.Client = (*Client)(nil)

func Dial(ctx context.Context, config Config) (*Client, error) {
	var opts []rpc.ClientOption
	if config.User != "" || config.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(config.User + ":" + config.Password))
		opts = append(opts, rpc.WithHTTPAuth(func(h http.Header) error {
			h.Set("Authorization", "Basic "+credentials)
			return nil
		}))
	}
	client, err := rpc.DialOptions(ctx, config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node at %s: %w", config.URL, err)
	}
	return &Client{
		client: client,
		log:    log.Root().With("module", "bitcoind", "url", config.URL),
	}, nil
}

func (c *Client) Close() {
	c.client.Close()
}

func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	var count uint64
	if err := c.call(ctx, &count, "getblockcount"); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Client) GetBlockHash(ctx context.Context, height uint64) (common.Hash, error) {
	var hash string
	if err := c.call(ctx, &hash, "getblockhash", height); err != nil {
		return common.Hash{}, err
	}
	return common.HashFromHex(hash)
}

type rpcBlock struct {
	Hash   string   `json:"hash"`
	Height uint64   `json:"height"`
	Time   int64    `json:"time"`
	Tx     []string `json:"tx"`
}

func (c *Client) GetBlock(ctx context.Context, hash common.Hash) (*chain.Block, error) {
	var block rpcBlock
	if err := c.call(ctx, &block, "getblock", hash.String(), 1); err != nil {
		return nil, err
	}
	res := &chain.Block{
		Height: block.Height,
		Time:   time.Unix(block.Time, 0).UTC(),
		TxIDs:  make([]common.Hash, 0, len(block.Tx)),
	}
	var err error
	if res.Hash, err = common.HashFromHex(block.Hash); err != nil {
		return nil, fmt.Errorf("invalid hash of block %v: %w", hash, err)
	}
	for _, tx := range block.Tx {
		id, err := common.HashFromHex(tx)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction id in block %v: %w", hash, err)
		}
		res.TxIDs = append(res.TxIDs, id)
	}
	return res, nil
}

type rpcTransaction struct {
	Txid string `json:"txid"`
	Vin  []struct {
		Txid     string `json:"txid"`
		Vout     uint32 `json:"vout"`
		Coinbase string `json:"coinbase"`
	} `json:"vin"`
	Vout []struct {
		Value        json.Number `json:"value"`
		N            uint32      `json:"n"`
		ScriptPubKey struct {
			Hex       string   `json:"hex"`
			Address   string   `json:"address"`
			Addresses []string `json:"addresses"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

func (c *Client) GetTransaction(ctx context.Context, txid common.Hash) (*chain.Transaction, error) {
	var tx rpcTransaction
	if err := c.call(ctx, &tx, "getrawtransaction", txid.String(), true); err != nil {
		return nil, err
	}

	res := &chain.Transaction{ID: txid}
	for _, in := range tx.Vin {
		if in.Coinbase != "" {
			res.Inputs = append(res.Inputs, chain.TxIn{Coinbase: true})
			continue
		}
		prev, err := common.HashFromHex(in.Txid)
		if err != nil {
			return nil, fmt.Errorf("invalid input of transaction %v: %w", txid, err)
		}
		res.Inputs = append(res.Inputs, chain.TxIn{TxID: prev, Vout: in.Vout})
	}
	for i, out := range tx.Vout {
		if int(out.N) != i {
			return nil, fmt.Errorf("transaction %v lists output %d at position %d", txid, out.N, i)
		}
		value, err := ParseAmount(out.Value.String())
		if err != nil {
			return nil, fmt.Errorf("invalid value of output %d of transaction %v: %w", i, txid, err)
		}
		script, err := hexutil.Decode("0x" + out.ScriptPubKey.Hex)
		if err != nil {
			return nil, fmt.Errorf("invalid script of output %d of transaction %v: %w", i, txid, err)
		}
		var addresses []common.Address
		if out.ScriptPubKey.Address != "" {
			addresses = append(addresses, common.Address(out.ScriptPubKey.Address))
		}
		for _, address := range out.ScriptPubKey.Addresses {
			if address != out.ScriptPubKey.Address {
				addresses = append(addresses, common.Address(address))
			}
		}
		res.Outputs = append(res.Outputs, chain.TxOut{
			Value:     value,
			Script:    script,
			Addresses: addresses,
		})
	}
	return res, nil
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

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	start := time.Now()
	err := c.client.CallContext(ctx, result, method, args...)
	c.log.Trace("Chain call", "method", method, "elapsed", time.Since(start), "err", err)
	if err == nil {
		return nil
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == errInvalidAddressOrKey {
		return fmt.Errorf("%s: %w", method, errors.Join(chain.ErrNotFound, err))
	}
	return fmt.Errorf("%s: %w", method, err)
}

const satoshiDigits = 8

// ParseAmount converts a decimal coin amount as reported by the node into
// the smallest currency unit without going through floating point.
func ParseAmount(amount string) (uint64, error) {
	whole, fraction, _ := strings.Cut(amount, ".")
	if whole == "" || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	if len(fraction) > satoshiDigits {
		if strings.Trim(fraction[satoshiDigits:], "0") != "" {
			return 0, fmt.Errorf("amount %q is more precise than the smallest unit", amount)
		}
		fraction = fraction[:satoshiDigits]
	}
	fraction += strings.Repeat("0", satoshiDigits-len(fraction))

	units, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	fractional, err := strconv.ParseUint(fraction, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	const unit = 100_000_000
	if units > (^uint64(0)-fractional)/unit {
		return 0, fmt.Errorf("amount %q out of range", amount)
	}
	return units*unit + fractional, nil
}
