// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lookup

import (
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
)

// Engine is the part of a lookup driven by the indexing loop.
type Engine[O any] interface {
	// ExecuteOperations filters the operations of one block and applies
	// the admitted ones.
	ExecuteOperations(ops []O) error
	// BlockHeight returns the height of the next block to be processed.
	BlockHeight() uint64
	SetBlockHeight(height uint64)
	// Clear drops all state and resets the height to the start height.
	Clear()
	GetStateHash() common.Hash
	GetMemoryFootprint() *common.MemoryFootprint
}

// Origin describes where on chain an operation was found and who issued it.
type Origin struct {
	Owner    common.Address // < address owning the spent input
	NewOwner common.Address // < receiver of transfers, empty otherwise
	Block    uint64         // < height of the containing block
	Burn     uint64         // < value of the data-carrying output
	Position int            // < index of the transaction within its block
}

// hasPriorityOver decides conflicts within one block: the higher burn wins,
// equal burns are decided in favour of the earlier transaction.
func (o Origin) hasPriorityOver(other Origin) bool {
	if o.Burn != other.Burn {
		return o.Burn > other.Burn
	}
	return o.Position < other.Position
}

// EntryOperation is an operation on a mutable or immutable entry.
type EntryOperation struct {
	Kind  forge.OpKind
	Key   []byte
	Value forge.Value
	Origin
}

// NewEntryOperation attaches chain context to a decoded entry operation.
func NewEntryOperation(op forge.Operation, origin Origin) EntryOperation {
	return EntryOperation{
		Kind:   op.Kind(),
		Key:    op.Key(),
		Value:  op.Value(),
		Origin: origin,
	}
}

// TokenOperation is an operation on a utility token.
type TokenOperation struct {
	Kind   forge.OpKind
	ID     []byte
	Amount uint64
	Origin
}

// NewTokenOperation attaches chain context to a decoded token operation.
func NewTokenOperation(op forge.Operation, origin Origin) TokenOperation {
	return TokenOperation{
		Kind:   op.Kind(),
		ID:     op.Key(),
		Amount: op.Amount(),
		Origin: origin,
	}
}

// Record is the state of a live entry.
type Record struct {
	Value           forge.Value
	Owner           common.Address
	ActivationBlock uint64
}

// Entry is a record together with its key, as produced by listings.
type Entry struct {
	Key []byte
	Record
}

// TokenBalance is the balance of one owner for one token.
type TokenBalance struct {
	ID      []byte
	Owner   common.Address
	Balance uint64
}
