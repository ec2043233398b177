// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package history

import (
	"errors"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
)

// History is an append-only sequence of processed block hashes. The entry
// at position i belongs to the i-th indexed block.
type History interface {
	// Append adds a hash at position Len().
	Append(hash common.Hash) error

	// Get returns the hash at the given position, or ErrNotFound if the
	// position is not below Len().
	Get(position uint64) (common.Hash, error)

	Len() uint64

	// Truncate drops all entries at positions >= length. Truncating to a
	// length larger than Len() is a no-op.
	Truncate(length uint64) error

	Flush() error
	Close() error

	GetMemoryFootprint() *common.MemoryFootprint
}

var ErrNotFound = errors.New("position not found in history")

// Last returns the most recent entry of the history.
func Last(h History) (common.Hash, bool, error) {
	n := h.Len()
	if n == 0 {
		return common.Hash{}, false, nil
	}
	hash, err := h.Get(n - 1)
	if err != nil {
		return common.Hash{}, false, err
	}
	return hash, true, nil
}
