// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// TableSpace separates the histories of different chains sharing a database.
type TableSpace byte

const (
	entryPrefix  byte = 'h'
	lengthPrefix byte = 'l'
)

const positionSize = 8

type dbKey [2 + positionSize]byte

func entryKey(table TableSpace, position uint64) dbKey {
	var k dbKey
	k[0] = byte(table)
	k[1] = entryPrefix
	binary.BigEndian.PutUint64(k[2:], position)
	return k
}

func lengthKey(table TableSpace) []byte {
	return []byte{byte(table), lengthPrefix}
}

// History keeps block hashes in a LevelDB instance. Appends are buffered in
// memory until the next Flush.
type History struct {
	db      *leveldb.DB
	table   TableSpace
	length  uint64
	flushed uint64 // < length persisted in the database
	pending []common.Hash
	owned   bool // < whether Close closes the database
}

// OpenLevelDb opens a LevelDB database in the given directory.
func OpenLevelDb(path string, options *opt.Options) (*leveldb.DB, error) {
	return leveldb.OpenFile(path, options)
}

// Open opens the history stored in a LevelDB database in the given directory.
func Open(path string) (*History, error) {
	db, err := OpenLevelDb(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	res, err := NewHistory(db, 0)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	res.owned = true
	return res, nil
}

// NewHistory creates a history on an existing database. The database is
// not closed when the history is closed.
func NewHistory(db *leveldb.DB, table TableSpace) (*History, error) {
	length := uint64(0)
	data, err := db.Get(lengthKey(table), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return nil, err
	case len(data) != positionSize:
		return nil, fmt.Errorf("invalid history length record of %d bytes", len(data))
	default:
		length = binary.BigEndian.Uint64(data)
	}
	return &History{
		db:      db,
		table:   table,
		length:  length,
		flushed: length,
	}, nil
}

func (h *History) Append(hash common.Hash) error {
	h.pending = append(h.pending, hash)
	h.length++
	return nil
}

func (h *History) Get(position uint64) (common.Hash, error) {
	if position >= h.length {
		return common.Hash{}, history.ErrNotFound
	}
	if position >= h.flushed {
		return h.pending[position-h.flushed], nil
	}
	key := entryKey(h.table, position)
	data, err := h.db.Get(key[:], nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read history position %d: %w", position, err)
	}
	if len(data) != common.HashSize {
		return common.Hash{}, fmt.Errorf("invalid history entry at position %d", position)
	}
	return common.Hash(data), nil
}

func (h *History) Len() uint64 {
	return h.length
}

func (h *History) Truncate(length uint64) error {
	if length >= h.length {
		return nil
	}
	if length >= h.flushed {
		h.pending = h.pending[:length-h.flushed]
		h.length = length
		return nil
	}

	batch := new(leveldb.Batch)
	from := entryKey(h.table, length)
	to := entryKey(h.table, h.flushed)
	iter := h.db.NewIterator(&util.Range{Start: from[:], Limit: to[:]}, nil)
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	batch.Put(lengthKey(h.table), binary.BigEndian.AppendUint64(nil, length))
	if err := h.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to truncate history: %w", err)
	}
	h.pending = nil
	h.length = length
	h.flushed = length
	return nil
}

func (h *History) Flush() error {
	if len(h.pending) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for i, hash := range h.pending {
		key := entryKey(h.table, h.flushed+uint64(i))
		batch.Put(key[:], hash[:])
	}
	batch.Put(lengthKey(h.table), binary.BigEndian.AppendUint64(nil, h.length))
	if err := h.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}
	h.pending = nil
	h.flushed = h.length
	return nil
}

func (h *History) Close() error {
	err := h.Flush()
	if h.owned {
		err = errors.Join(err, h.db.Close())
	}
	return err
}

func (h *History) GetMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*h) + uintptr(cap(h.pending))*common.HashSize)
	mf.SetNote(fmt.Sprintf("(items: %d, pending: %d)", h.length, len(h.pending)))
	return mf
}
