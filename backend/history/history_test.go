// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package history_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/ldb"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/memory"
	"github.com/DarkWingMcQuack/forge-core-sub000/backend/history/sqlite"
	"github.com/DarkWingMcQuack/forge-core-sub000/common"
)

type factory struct {
	// open opens the history stored in dir, or a fresh one for memory.
	open       func(t *testing.T, dir string) history.History
	persistent bool
}

func initHistoriesMap() map[string]factory {
	return map[string]factory{
		"memory": {
			open: func(t *testing.T, dir string) history.History {
				return memory.NewHistory()
			},
		},
		"ldb": {
			open: func(t *testing.T, dir string) history.History {
				h, err := ldb.Open(dir)
				if err != nil {
					t.Fatalf("failed to open leveldb history; %s", err)
				}
				return h
			},
			persistent: true,
		},
		"sharedLdb": {
			open: func(t *testing.T, dir string) history.History {
				db, err := ldb.OpenLevelDb(dir, nil)
				if err != nil {
					t.Fatalf("failed to open leveldb; %s", err)
				}
				h, err := ldb.NewHistory(db, 7)
				if err != nil {
					t.Fatalf("failed to init leveldb history; %s", err)
				}
				return closing{h, db.Close}
			},
			persistent: true,
		},
		"sqlite": {
			open: func(t *testing.T, dir string) history.History {
				h, err := sqlite.Open(filepath.Join(dir, "history.sqlite"))
				if err != nil {
					t.Fatalf("failed to open sqlite history; %s", err)
				}
				return h
			},
			persistent: true,
		},
	}
}

// closing closes an additional resource after the history.
type closing struct {
	history.History
	close func() error
}

func (c closing) Close() error {
	return errors.Join(c.History.Close(), c.close())
}

func hashOf(i int) common.Hash {
	return common.Hash{byte(i >> 8), byte(i), 0xff}
}

func fill(t *testing.T, h history.History, from, to int) {
	t.Helper()
	for i := from; i < to; i++ {
		if err := h.Append(hashOf(i)); err != nil {
			t.Fatalf("failed to append hash %d: %v", i, err)
		}
	}
}

func check(t *testing.T, h history.History, length int) {
	t.Helper()
	if got, want := h.Len(), uint64(length); got != want {
		t.Fatalf("wrong length, wanted %d, got %d", want, got)
	}
	for i := 0; i < length; i++ {
		hash, err := h.Get(uint64(i))
		if err != nil {
			t.Fatalf("failed to get position %d: %v", i, err)
		}
		if hash != hashOf(i) {
			t.Errorf("wrong hash at position %d, wanted %v, got %v", i, hashOf(i), hash)
		}
	}
	if _, err := h.Get(uint64(length)); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected ErrNotFound past the end, got %v", err)
	}
}

func TestHistory_AppendedHashesCanBeRead(t *testing.T) {
	for name, f := range initHistoriesMap() {
		for _, size := range []int{0, 1, 5, 300} {
			t.Run(fmt.Sprintf("%s size %d", name, size), func(t *testing.T) {
				h := f.open(t, t.TempDir())
				defer h.Close()

				fill(t, h, 0, size)
				check(t, h, size)
				if err := h.Flush(); err != nil {
					t.Fatalf("failed to flush: %v", err)
				}
				check(t, h, size)
			})
		}
	}
}

func TestHistory_Last(t *testing.T) {
	for name, f := range initHistoriesMap() {
		t.Run(name, func(t *testing.T) {
			h := f.open(t, t.TempDir())
			defer h.Close()

			if _, found, err := history.Last(h); found || err != nil {
				t.Fatalf("empty history has a last entry: %v, %v", found, err)
			}
			fill(t, h, 0, 3)
			last, found, err := history.Last(h)
			if err != nil || !found || last != hashOf(2) {
				t.Errorf("wrong last entry %v, %v, %v", last, found, err)
			}
		})
	}
}

func TestHistory_Truncate(t *testing.T) {
	for name, f := range initHistoriesMap() {
		for _, flushed := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s flushed %t", name, flushed), func(t *testing.T) {
				h := f.open(t, t.TempDir())
				defer h.Close()

				fill(t, h, 0, 10)
				if flushed {
					if err := h.Flush(); err != nil {
						t.Fatalf("failed to flush: %v", err)
					}
				}
				fill(t, h, 10, 12)

				if err := h.Truncate(20); err != nil {
					t.Fatalf("failed to truncate: %v", err)
				}
				check(t, h, 12)

				if err := h.Truncate(11); err != nil {
					t.Fatalf("failed to truncate: %v", err)
				}
				check(t, h, 11)

				if err := h.Truncate(4); err != nil {
					t.Fatalf("failed to truncate: %v", err)
				}
				check(t, h, 4)

				// positions are reused after truncation
				fill(t, h, 4, 8)
				check(t, h, 8)
				if err := h.Flush(); err != nil {
					t.Fatalf("failed to flush: %v", err)
				}
				check(t, h, 8)

				if err := h.Truncate(0); err != nil {
					t.Fatalf("failed to truncate: %v", err)
				}
				check(t, h, 0)
			})
		}
	}
}

func TestHistory_ContentSurvivesReopening(t *testing.T) {
	for name, f := range initHistoriesMap() {
		if !f.persistent {
			continue
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			h := f.open(t, dir)
			fill(t, h, 0, 20)
			if err := h.Close(); err != nil {
				t.Fatalf("failed to close: %v", err)
			}

			h = f.open(t, dir)
			check(t, h, 20)
			if err := h.Truncate(15); err != nil {
				t.Fatalf("failed to truncate: %v", err)
			}
			if err := h.Close(); err != nil {
				t.Fatalf("failed to close: %v", err)
			}

			h = f.open(t, dir)
			defer h.Close()
			check(t, h, 15)
		})
	}
}

func TestHistory_MemoryFootprintIsReported(t *testing.T) {
	for name, f := range initHistoriesMap() {
		t.Run(name, func(t *testing.T) {
			h := f.open(t, t.TempDir())
			defer h.Close()
			fill(t, h, 0, 4)
			if mf := h.GetMemoryFootprint(); mf == nil || mf.Total() == 0 {
				t.Errorf("no memory footprint reported")
			}
		})
	}
}
