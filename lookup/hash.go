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
	"encoding/binary"
	"hash"

	"github.com/DarkWingMcQuack/forge-core-sub000/common"
	"golang.org/x/crypto/sha3"
)

// stateHasher feeds length-prefixed fields into a Keccak-256 hash, such
// that field boundaries are unambiguous.
type stateHasher struct {
	hash   hash.Hash
	buffer [8]byte
}

func newStateHasher() *stateHasher {
	return &stateHasher{hash: sha3.NewLegacyKeccak256()}
}

func (h *stateHasher) writeUint64(value uint64) {
	binary.BigEndian.PutUint64(h.buffer[:], value)
	h.hash.Write(h.buffer[:])
}

func (h *stateHasher) writeByte(value byte) {
	h.hash.Write([]byte{value})
}

func (h *stateHasher) writeBytes(data []byte) {
	h.writeUint64(uint64(len(data)))
	h.hash.Write(data)
}

func (h *stateHasher) sum() common.Hash {
	var res common.Hash
	h.hash.Sum(res[:0])
	return res
}
