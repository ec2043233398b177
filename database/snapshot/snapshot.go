// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package snapshot persists the registry state of all lookup engines so an
// indexer can resume without rescanning the chain.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/DarkWingMcQuack/forge-core-sub000/lookup"
	"github.com/golang/snappy"
)

// Magic number and version of the snapshot format.
const (
	snapshotMagic   uint32 = 0xF0A6E5C0
	snapshotVersion uint8  = 1
)

// Snapshot is the complete registry state after processing all blocks
// below Height.
type Snapshot struct {
	Chain     string
	Height    uint64      // < height of the next block to be processed
	TipHash   common.Hash // < hash of block Height-1, zero if none was processed
	Mutable   []lookup.Entry
	Immutable []lookup.Entry
	Tokens    []lookup.TokenLedger
}

// Capture copies the state of the given engines. All engines are expected
// to be at the same block height.
func Capture(chain string, tip common.Hash, mutable, immutable *lookup.EntryLookup, tokens *lookup.TokenLookup) *Snapshot {
	return &Snapshot{
		Chain:     chain,
		Height:    mutable.BlockHeight(),
		TipHash:   tip,
		Mutable:   mutable.Entries(),
		Immutable: immutable.Entries(),
		Tokens:    tokens.Ledgers(),
	}
}

// RestoreInto replaces the state of the given engines by the snapshot.
func (s *Snapshot) RestoreInto(mutable, immutable *lookup.EntryLookup, tokens *lookup.TokenLookup) error {
	err := errors.Join(
		mutable.Restore(s.Mutable, s.Height),
		immutable.Restore(s.Immutable, s.Height),
		tokens.Restore(s.Tokens, s.Height),
	)
	if err != nil {
		mutable.Clear()
		immutable.Clear()
		tokens.Clear()
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return nil
}

// Save writes the snapshot atomically to the given file.
func Save(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	err = errors.Join(Write(file, s), file.Sync(), file.Close())
	if err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return os.Rename(tmp, path)
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := Read(file)
	if err = errors.Join(err, file.Close()); err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	return s, nil
}

func Write(w io.Writer, s *Snapshot) error {
	compressed := snappy.NewBufferedWriter(w)
	out := &writer{w: bufio.NewWriter(compressed)}

	out.uint32(snapshotMagic)
	out.byte(snapshotVersion)
	out.bytes([]byte(s.Chain))
	out.uint64(s.Height)
	out.raw(s.TipHash[:])
	out.entries(s.Mutable)
	out.entries(s.Immutable)

	out.uint32(uint32(len(s.Tokens)))
	for _, token := range s.Tokens {
		out.bytes(token.ID)
		out.uint64(token.Created)
		out.uint32(uint32(len(token.Balances)))
		for _, balance := range token.Balances {
			out.bytes([]byte(balance.Owner))
			out.uint64(balance.Balance)
		}
	}

	if out.err != nil {
		return out.err
	}
	return errors.Join(out.w.Flush(), compressed.Close())
}

func Read(r io.Reader) (*Snapshot, error) {
	in := &reader{r: bufio.NewReader(snappy.NewReader(r))}

	if magic := in.uint32(); in.err == nil && magic != snapshotMagic {
		return nil, fmt.Errorf("invalid snapshot magic number: %x", magic)
	}
	if version := in.byte(); in.err == nil && version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}

	s := &Snapshot{}
	s.Chain = string(in.bytes())
	s.Height = in.uint64()
	in.raw(s.TipHash[:])
	s.Mutable = in.entries()
	s.Immutable = in.entries()

	tokens := in.count()
	for i := uint32(0); i < tokens && in.err == nil; i++ {
		token := lookup.TokenLedger{ID: in.bytes(), Created: in.uint64()}
		balances := in.count()
		for j := uint32(0); j < balances && in.err == nil; j++ {
			token.Balances = append(token.Balances, lookup.TokenBalance{
				ID:      token.ID,
				Owner:   common.Address(in.bytes()),
				Balance: in.uint64(),
			})
		}
		s.Tokens = append(s.Tokens, token)
	}

	if in.err != nil {
		return nil, fmt.Errorf("corrupted snapshot: %w", in.err)
	}
	if _, err := in.r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("corrupted snapshot: trailing data")
	}
	return s, nil
}

// writer keeps the first error and turns all later writes into no-ops.
type writer struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

func (w *writer) raw(data []byte) {
	if w.err == nil {
		_, w.err = w.w.Write(data)
	}
}

func (w *writer) byte(b byte) {
	w.raw([]byte{b})
}

func (w *writer) uint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	w.raw(w.buf[:4])
}

func (w *writer) uint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:], v)
	w.raw(w.buf[:])
}

func (w *writer) bytes(data []byte) {
	if uint64(len(data)) > math.MaxUint32 {
		w.err = errors.Join(w.err, fmt.Errorf("field of %d bytes is too large", len(data)))
		return
	}
	w.uint32(uint32(len(data)))
	w.raw(data)
}

func (w *writer) entries(entries []lookup.Entry) {
	w.uint32(uint32(len(entries)))
	for _, entry := range entries {
		value, err := entry.Value.MarshalBinary()
		if err != nil {
			w.err = errors.Join(w.err, err)
			return
		}
		w.bytes(entry.Key)
		w.bytes(value)
		w.bytes([]byte(entry.Owner))
		w.uint64(entry.ActivationBlock)
	}
}

// maxField bounds the size of a single field to detect corrupted lengths
// before allocating.
const maxField = 1 << 24

type reader struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

func (r *reader) raw(data []byte) {
	if r.err == nil {
		_, r.err = io.ReadFull(r.r, data)
	}
}

func (r *reader) byte() byte {
	r.raw(r.buf[:1])
	return r.buf[0]
}

func (r *reader) uint32() uint32 {
	r.raw(r.buf[:4])
	if r.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(r.buf[:4])
}

func (r *reader) uint64() uint64 {
	r.raw(r.buf[:])
	if r.err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(r.buf[:])
}

// count reads the number of elements of a list.
func (r *reader) count() uint32 {
	return r.uint32()
}

func (r *reader) bytes() []byte {
	size := r.uint32()
	if r.err != nil {
		return nil
	}
	if size > maxField {
		r.err = fmt.Errorf("field of %d bytes exceeds limit", size)
		return nil
	}
	if size == 0 {
		return nil
	}
	data := make([]byte, size)
	r.raw(data)
	return data
}

func (r *reader) entries() []lookup.Entry {
	count := r.count()
	var res []lookup.Entry
	for i := uint32(0); i < count && r.err == nil; i++ {
		key := r.bytes()
		var value forge.Value
		if encoded := r.bytes(); r.err == nil {
			r.err = value.UnmarshalBinary(encoded)
		}
		owner := common.Address(r.bytes())
		activation := r.uint64()
		res = append(res, lookup.Entry{
			Key: key,
			Record: lookup.Record{
				Value:           value,
				Owner:           owner,
				ActivationBlock: activation,
			},
		})
	}
	return res
}
