// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package forge

import (
	"bytes"
	"encoding/binary"
)

// ProtocolID prefixes every protocol payload.
var ProtocolID = [3]byte{0xc6, 0xdc, 0x75}

const (
	headerSize = len(ProtocolID) + 2 // < protocol id, entry type, operation
	amountSize = 8
)

// IsProtocolPayload reports whether the data starts with the protocol id.
// It does not check whether the rest of the payload is well formed.
func IsProtocolPayload(data []byte) bool {
	return bytes.HasPrefix(data, ProtocolID[:])
}

// Decode parses a payload into an operation. Payloads of other protocols,
// unknown flags, truncated values and missing keys are not errors; they
// are reported as absent by returning false.
//
// Layout:
//
//	[3 byte protocol id][entry type][operation][value flag + value | 8 byte amount][key...]
func Decode(data []byte) (Operation, bool) {
	if len(data) < headerSize || !IsProtocolPayload(data) {
		return Operation{}, false
	}
	entryType := EntryType(data[len(ProtocolID)])
	kind := OpKind(data[len(ProtocolID)+1])
	if !entryType.Supports(kind) {
		return Operation{}, false
	}
	rest := data[headerSize:]

	if entryType == UtilityToken {
		if len(rest) < amountSize {
			return Operation{}, false
		}
		amount := binary.BigEndian.Uint64(rest)
		op, err := NewTokenOperation(kind, rest[amountSize:], amount)
		if err != nil {
			return Operation{}, false
		}
		return op, true
	}

	value, consumed, ok := decodeValue(rest)
	if !ok {
		return Operation{}, false
	}
	op, err := NewEntryOperation(entryType, kind, rest[consumed:], value)
	if err != nil {
		return Operation{}, false
	}
	return op, true
}

// Encode produces the payload of an operation. It is the exact inverse of
// Decode.
func Encode(op Operation) []byte {
	size := headerSize + len(op.key)
	if op.IsToken() {
		size += amountSize
	} else {
		size += op.value.encodedSize()
	}

	buf := make([]byte, 0, size)
	buf = append(buf, ProtocolID[:]...)
	buf = append(buf, byte(op.entryType), byte(op.kind))
	if op.IsToken() {
		buf = binary.BigEndian.AppendUint64(buf, op.amount)
	} else {
		buf = op.value.appendTo(buf)
	}
	return append(buf, op.key...)
}
