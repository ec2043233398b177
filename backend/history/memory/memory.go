// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"fmt"
	"unsafe"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
)

type History struct {
	hashes []common.Hash
}

func NewHistory() *History {
	return &History{}
}

func (m *History) Append(hash common.Hash) error {
	m.hashes = append(m.hashes, hash)
	return nil
}

func (m *History) Get(position uint64) (common.Hash, error) {
	if position >= uint64(len(m.hashes)) {
		return common.Hash{}, history.ErrNotFound
	}
	return m.hashes[position], nil
}

func (m *History) Len() uint64 {
	return uint64(len(m.hashes))
}

func (m *History) Truncate(length uint64) error {
	if length < uint64(len(m.hashes)) {
		m.hashes = m.hashes[:length]
	}
	return nil
}

func (m *History) Flush() error {
	return nil
}

func (m *History) Close() error {
	return nil
}

func (m *History) GetMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*m) + uintptr(cap(m.hashes))*common.HashSize)
	mf.SetNote(fmt.Sprintf("(items: %d)", len(m.hashes)))
	return mf
}
