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
	"bytes"
	"errors"
	"fmt"
	"slices"
	"unsafe"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
)

const initCapacity = 1_000

// EntryLookup maintains the live records of one entry type. The same engine
// serves mutable and immutable entries; the only difference is whether
// Update operations are admitted.
//
// Records are held in a slot table addressed through a key index. Queries
// return copies, the table is only modified through operations.
//
// NOTE: this implementation is NOT thread-safe. Concurrent access must be
// externally synchronized.
type EntryLookup struct {
	updatable   bool
	startHeight uint64
	height      uint64 // < height of the next block to be processed

	index map[string]uint32 // < key to slot
	slots []slot
	free  []uint32 // < unused slots, reused before growing the table
}

type slot struct {
	key    string
	record Record
	used   bool
}

var _ Engine[EntryOperation] = (*EntryLookup)(nil)

// NewMutableEntryLookup creates a lookup for entries whose value may be
// replaced by their owner.
func NewMutableEntryLookup(startHeight uint64) *EntryLookup {
	return newEntryLookup(true, startHeight)
}

// NewImmutableEntryLookup creates a lookup for entries whose value is fixed
// at creation.
func NewImmutableEntryLookup(startHeight uint64) *EntryLookup {
	return newEntryLookup(false, startHeight)
}

func newEntryLookup(updatable bool, startHeight uint64) *EntryLookup {
	return &EntryLookup{
		updatable:   updatable,
		startHeight: startHeight,
		height:      startHeight,
		index:       make(map[string]uint32, initCapacity),
	}
}

// SupportsUpdate reports whether Update operations are admitted.
func (l *EntryLookup) SupportsUpdate() bool {
	return l.updatable
}

func (l *EntryLookup) BlockHeight() uint64 {
	return l.height
}

func (l *EntryLookup) SetBlockHeight(height uint64) {
	l.height = height
}

// Size returns the number of live records.
func (l *EntryLookup) Size() int {
	return len(l.index)
}

// IsCurrentlyValid reports whether the operation may compete for its key in
// the current block: a Creation requires the key to be free, any operation
// on a live key requires its issuer to own the record. Whether the operation
// has an effect is decided by Apply.
func (l *EntryLookup) IsCurrentlyValid(op EntryOperation) bool {
	if op.Owner.IsEmpty() {
		return false
	}
	record, found := l.get(op.Key)
	if !found {
		return op.Kind == forge.Creation
	}
	return record.Owner == op.Owner
}

// FilterNonRelevantOperations drops operations that are not currently valid
// and, among the remaining operations targeting the same key, keeps only the
// one with the highest burn value. Equal burns are decided in favour of the
// transaction appearing first in the block. The result lists the winners in
// the order their keys first appeared.
func (l *EntryLookup) FilterNonRelevantOperations(ops []EntryOperation) []EntryOperation {
	winners := make(map[string]int, len(ops))
	res := make([]EntryOperation, 0, len(ops))
	for _, op := range ops {
		if !l.IsCurrentlyValid(op) {
			continue
		}
		key := string(op.Key)
		if pos, found := winners[key]; found {
			if op.hasPriorityOver(res[pos].Origin) {
				res[pos] = op
			}
			continue
		}
		winners[key] = len(res)
		res = append(res, op)
	}
	return res
}

// ExecuteOperations applies the operations of a single block.
func (l *EntryLookup) ExecuteOperations(ops []EntryOperation) error {
	var errs []error
	for _, op := range l.FilterNonRelevantOperations(ops) {
		if err := l.Apply(op); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply performs a single operation. Operations whose preconditions do not
// hold leave the state untouched.
func (l *EntryLookup) Apply(op EntryOperation) error {
	pos, found := l.index[string(op.Key)]
	if op.Kind == forge.Creation {
		if !found {
			l.insert(op.Key, Record{
				Value:           op.Value,
				Owner:           op.Owner,
				ActivationBlock: op.Block,
			})
		}
		return nil
	}
	if !found {
		return nil
	}

	record := &l.slots[pos].record
	if record.Owner != op.Owner {
		return nil
	}
	switch op.Kind {
	case forge.Renewal:
		if record.Value.Equal(op.Value) && op.Block > record.ActivationBlock {
			record.ActivationBlock = op.Block
		}
	case forge.OwnershipTransfer:
		if record.Value.Equal(op.Value) && !op.NewOwner.IsEmpty() {
			record.Owner = op.NewOwner
		}
	case forge.Update:
		if l.updatable {
			record.Value = op.Value
		}
	case forge.Deletion:
		if record.Value.Equal(op.Value) {
			l.remove(pos)
		}
	default:
		return fmt.Errorf("unsupported operation kind %v", op.Kind)
	}
	return nil
}

// RemoveEntriesOlderThan drops every record whose activation block lies more
// than window blocks before the current height, that is every record with
// activation + window < height. It returns the number of removed records.
func (l *EntryLookup) RemoveEntriesOlderThan(window uint64) int {
	removed := 0
	for pos := range l.slots {
		s := &l.slots[pos]
		if !s.used {
			continue
		}
		activation := s.record.ActivationBlock
		if activation < l.height && l.height-activation > window {
			l.remove(uint32(pos))
			removed++
		}
	}
	return removed
}

// Lookup returns the value of the live record for the key.
func (l *EntryLookup) Lookup(key []byte) (forge.Value, bool) {
	record, found := l.get(key)
	return record.Value, found
}

// LookupOwner returns the owner of the live record for the key.
func (l *EntryLookup) LookupOwner(key []byte) (common.Address, bool) {
	record, found := l.get(key)
	return record.Owner, found
}

// LookupActivationBlock returns the activation block of the live record for the key.
func (l *EntryLookup) LookupActivationBlock(key []byte) (uint64, bool) {
	record, found := l.get(key)
	return record.ActivationBlock, found
}

// LookupRecord returns a copy of the live record for the key.
func (l *EntryLookup) LookupRecord(key []byte) (Record, bool) {
	return l.get(key)
}

// GetEntriesOfOwner lists all live records of the given owner, ordered by key.
func (l *EntryLookup) GetEntriesOfOwner(owner common.Address) []Entry {
	return l.collect(func(r *Record) bool { return r.Owner == owner })
}

// Entries lists all live records, ordered by key.
func (l *EntryLookup) Entries() []Entry {
	return l.collect(func(*Record) bool { return true })
}

// Restore replaces the current state by the given entries and height.
func (l *EntryLookup) Restore(entries []Entry, height uint64) error {
	l.Clear()
	for _, entry := range entries {
		if _, found := l.index[string(entry.Key)]; found {
			return fmt.Errorf("duplicate key %x in restored entries", entry.Key)
		}
		l.insert(entry.Key, entry.Record)
	}
	l.height = height
	return nil
}

// Clear removes all records and resets the height to the start height.
func (l *EntryLookup) Clear() {
	l.index = make(map[string]uint32, initCapacity)
	l.slots = nil
	l.free = nil
	l.height = l.startHeight
}

// GetStateHash computes a digest over all live records. Equal content
// produces equal hashes regardless of the order of insertion. The hash of
// an empty lookup is zero.
func (l *EntryLookup) GetStateHash() common.Hash {
	entries := l.Entries()
	if len(entries) == 0 {
		return common.Hash{}
	}
	hasher := newStateHasher()
	for _, entry := range entries {
		hasher.writeBytes(entry.Key)
		hasher.writeByte(byte(entry.Value.Kind()))
		hasher.writeBytes(entry.Value.Bytes())
		hasher.writeBytes([]byte(entry.Owner))
		hasher.writeUint64(entry.ActivationBlock)
	}
	return hasher.sum()
}

// GetMemoryFootprint provides the size of the lookup in memory in bytes.
func (l *EntryLookup) GetMemoryFootprint() *common.MemoryFootprint {
	data := uintptr(0)
	for _, s := range l.slots {
		data += uintptr(len(s.key) + s.record.Value.Len() + len(s.record.Owner))
	}
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*l))
	mf.AddChild("slots", common.NewMemoryFootprint(uintptr(cap(l.slots))*unsafe.Sizeof(slot{})+data))
	mf.AddChild("index", common.NewMemoryFootprint(uintptr(len(l.index))*(unsafe.Sizeof("")+4)))
	mf.SetNote(fmt.Sprintf("(items: %d)", len(l.index)))
	return mf
}

func (l *EntryLookup) get(key []byte) (Record, bool) {
	pos, found := l.index[string(key)]
	if !found {
		return Record{}, false
	}
	return l.slots[pos].record, true
}

func (l *EntryLookup) insert(key []byte, record Record) {
	entry := slot{key: string(key), record: record, used: true}
	var pos uint32
	if n := len(l.free); n > 0 {
		pos = l.free[n-1]
		l.free = l.free[:n-1]
		l.slots[pos] = entry
	} else {
		pos = uint32(len(l.slots))
		l.slots = append(l.slots, entry)
	}
	l.index[entry.key] = pos
}

func (l *EntryLookup) remove(pos uint32) {
	delete(l.index, l.slots[pos].key)
	l.slots[pos] = slot{}
	l.free = append(l.free, pos)
}

func (l *EntryLookup) collect(filter func(*Record) bool) []Entry {
	var res []Entry
	for pos := range l.slots {
		s := &l.slots[pos]
		if s.used && filter(&s.record) {
			res = append(res, Entry{Key: []byte(s.key), Record: s.record})
		}
	}
	slices.SortFunc(res, func(a, b Entry) int {
		return bytes.Compare(a.Key, b.Key)
	})
	return res
}
