// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HashSize is the number of bytes of a block or transaction hash.
const HashSize = 32

// Address is a host-chain address in its textual encoding. Addresses are
// compared byte-wise, no normalization is applied.
type Address string

// IsEmpty reports whether the address is the zero value.
func (a Address) IsEmpty() bool {
	return len(a) == 0
}

// Hash is a block or transaction identifier of the host chain.
type Hash [HashSize]byte

// HashFromHex parses a hex-encoded hash. The 0x prefix is optional, since
// Bitcoin-style daemons report hashes without it.
func HashFromHex(s string) (Hash, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(data) != HashSize {
		return Hash{}, fmt.Errorf("invalid hash length %d, expected %d", len(data), HashSize)
	}
	var res Hash
	copy(res[:], data)
	return res, nil
}

// String produces the daemon-style representation, without 0x prefix.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Compare orders hashes lexicographically.
func (h *Hash) Compare(other *Hash) int {
	return bytes.Compare(h[:], other[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	res, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = res
	return nil
}
