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
	"fmt"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/DarkWingMcQuack/forge-core-sub000/lookup"
)

func (m *Manager) entries(t forge.EntryType) (*lookup.EntryLookup, error) {
	switch t {
	case forge.MutableEntry:
		return m.mutable, nil
	case forge.ImmutableEntry:
		return m.immutable, nil
	default:
		return nil, fmt.Errorf("%v has no entries", t)
	}
}

// LookupRecord returns the live record of a key. Only mutable and
// immutable entries have records; other types report an error.
func (m *Manager) LookupRecord(t forge.EntryType, key []byte) (lookup.Record, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	engine, err := m.entries(t)
	if err != nil {
		return lookup.Record{}, false, err
	}
	record, found := engine.LookupRecord(key)
	return record, found, nil
}

func (m *Manager) Lookup(t forge.EntryType, key []byte) (forge.Value, bool, error) {
	record, found, err := m.LookupRecord(t, key)
	return record.Value, found, err
}

func (m *Manager) LookupOwner(t forge.EntryType, key []byte) (common.Address, bool, error) {
	record, found, err := m.LookupRecord(t, key)
	return record.Owner, found, err
}

func (m *Manager) LookupActivationBlock(t forge.EntryType, key []byte) (uint64, bool, error) {
	record, found, err := m.LookupRecord(t, key)
	return record.ActivationBlock, found, err
}

func (m *Manager) GetEntriesOfOwner(t forge.EntryType, owner common.Address) ([]lookup.Entry, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	engine, err := m.entries(t)
	if err != nil {
		return nil, err
	}
	return engine.GetEntriesOfOwner(owner), nil
}

func (m *Manager) GetUtilityTokensOfOwner(owner common.Address) []lookup.TokenBalance {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.tokens.GetUtilityTokensOfOwner(owner)
}

func (m *Manager) GetBalanceOf(id []byte, owner common.Address) (uint64, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.tokens.GetBalanceOf(id, owner)
}

func (m *Manager) GetSupply(id []byte) (uint64, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.tokens.GetSupply(id)
}

// Status is a consistent view of the registry's progress.
type Status struct {
	State          State
	BlockHeight    uint64 // < next height to be processed
	TipHash        common.Hash
	MutableSize    int
	ImmutableSize  int
	TokenCount     int
	MutableHash    common.Hash
	ImmutableHash  common.Hash
	TokenStateHash common.Hash
}

func (m *Manager) Status() (Status, error) {
	state := m.State()
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	tip, _, err := history.Last(m.history)
	if err != nil {
		return Status{}, err
	}
	return Status{
		State:          state,
		BlockHeight:    m.mutable.BlockHeight(),
		TipHash:        tip,
		MutableSize:    m.mutable.Size(),
		ImmutableSize:  m.immutable.Size(),
		TokenCount:     m.tokens.Size(),
		MutableHash:    m.mutable.GetStateHash(),
		ImmutableHash:  m.immutable.GetStateHash(),
		TokenStateHash: m.tokens.GetStateHash(),
	}, nil
}
