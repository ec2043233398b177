// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"unsafe"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	position INTEGER PRIMARY KEY,
	hash     BLOB NOT NULL
);
`

// History keeps block hashes in a SQLite database. Appends are buffered in
// memory until the next Flush.
type History struct {
	db      *sql.DB
	length  uint64
	flushed uint64
	pending []common.Hash
}

func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create history schema: %w", err), db.Close())
	}
	var length uint64
	if err := db.QueryRow("SELECT COUNT(*) FROM history").Scan(&length); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	var last sql.NullInt64
	if err := db.QueryRow("SELECT MAX(position) FROM history").Scan(&last); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	if last.Valid && uint64(last.Int64)+1 != length {
		return nil, errors.Join(fmt.Errorf("history database %s has gaps", path), db.Close())
	}
	return &History{db: db, length: length, flushed: length}, nil
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
	var data []byte
	if err := h.db.QueryRow("SELECT hash FROM history WHERE position = ?", position).Scan(&data); err != nil {
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
	if _, err := h.db.Exec("DELETE FROM history WHERE position >= ?", length); err != nil {
		return fmt.Errorf("failed to truncate history: %w", err)
	}
	h.pending = nil
	h.length = length
	h.flushed = length
	return nil
}

func (h *History) Flush() (err error) {
	if len(h.pending) == 0 {
		return nil
	}
	tx, err := h.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()
	stmt, err := tx.Prepare("INSERT INTO history (position, hash) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, hash := range h.pending {
		if _, err := stmt.Exec(h.flushed+uint64(i), hash[:]); err != nil {
			return fmt.Errorf("failed to flush history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}
	h.pending = nil
	h.flushed = h.length
	return nil
}

func (h *History) Close() error {
	return errors.Join(h.Flush(), h.db.Close())
}

func (h *History) GetMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*h) + uintptr(cap(h.pending))*common.HashSize)
	mf.SetNote(fmt.Sprintf("(items: %d, pending: %d)", h.length, len(h.pending)))
	return mf
}
