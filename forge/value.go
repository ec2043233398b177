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
	"encoding/hex"
	"fmt"
)

// ValueKind identifies the encoding of a Value. The numeric values of the
// kinds are the value flags used on the wire.
type ValueKind byte

const (
	EmptyValue   ValueKind = 0x00 // < no value bytes at all
	Fixed4Value  ValueKind = 0x01 // < exactly 4 bytes, e.g. an IPv4 address
	Fixed16Value ValueKind = 0x02 // < exactly 16 bytes, e.g. an IPv6 address
	BytesValue   ValueKind = 0x03 // < length-prefixed, up to MaxBytesValueLength bytes
)

// MaxBytesValueLength is the maximum length of a variable length value, bound
// by its one byte length prefix.
const MaxBytesValueLength = 255

func (k ValueKind) String() string {
	switch k {
	case EmptyValue:
		return "empty"
	case Fixed4Value:
		return "fixed4"
	case Fixed16Value:
		return "fixed16"
	case BytesValue:
		return "bytes"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

func (k ValueKind) valid() bool {
	return k <= BytesValue
}

// Value is the payload of a mutable or immutable entry. It is a closed union
// over the kinds listed above; the zero Value is the empty value. Values are
// immutable, accessors return copies.
type Value struct {
	kind ValueKind
	data []byte
}

// NewEmptyValue creates a value without content.
func NewEmptyValue() Value {
	return Value{}
}

// NewFixed4Value creates a fixed 4 byte value.
func NewFixed4Value(data [4]byte) Value {
	return Value{kind: Fixed4Value, data: data[:]}
}

// NewFixed16Value creates a fixed 16 byte value.
func NewFixed16Value(data [16]byte) Value {
	return Value{kind: Fixed16Value, data: data[:]}
}

// NewBytesValue creates a variable length value. It fails if the data does
// not fit the one byte length prefix.
func NewBytesValue(data []byte) (Value, error) {
	if len(data) > MaxBytesValueLength {
		return Value{}, fmt.Errorf("value of %d bytes exceeds maximum of %d", len(data), MaxBytesValueLength)
	}
	return Value{kind: BytesValue, data: cloneOrNil(data)}, nil
}

// NewValue creates a value of the given kind, checking that the data fits.
func NewValue(kind ValueKind, data []byte) (Value, error) {
	switch kind {
	case EmptyValue:
		if len(data) != 0 {
			return Value{}, fmt.Errorf("empty value with %d bytes of content", len(data))
		}
		return NewEmptyValue(), nil
	case Fixed4Value:
		if len(data) != 4 {
			return Value{}, fmt.Errorf("fixed4 value needs 4 bytes, got %d", len(data))
		}
		return NewFixed4Value([4]byte(data)), nil
	case Fixed16Value:
		if len(data) != 16 {
			return Value{}, fmt.Errorf("fixed16 value needs 16 bytes, got %d", len(data))
		}
		return NewFixed16Value([16]byte(data)), nil
	case BytesValue:
		return NewBytesValue(data)
	default:
		return Value{}, fmt.Errorf("unknown value kind %v", kind)
	}
}

// ParseValueKind parses the name of a value kind as printed by String.
func ParseValueKind(s string) (ValueKind, error) {
	for kind := EmptyValue; kind.valid(); kind++ {
		if kind.String() == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Bytes returns a copy of the value's content.
func (v Value) Bytes() []byte {
	return cloneOrNil(v.data)
}

// Len returns the number of content bytes.
func (v Value) Len() int {
	return len(v.data)
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && bytes.Equal(v.data, other.data)
}

func (v Value) String() string {
	if v.kind == EmptyValue {
		return v.kind.String()
	}
	return v.kind.String() + ":" + hex.EncodeToString(v.data)
}

// MarshalBinary encodes the value the way it is embedded in operations.
func (v Value) MarshalBinary() ([]byte, error) {
	return v.appendTo(make([]byte, 0, v.encodedSize())), nil
}

func (v *Value) UnmarshalBinary(data []byte) error {
	value, consumed, ok := decodeValue(data)
	if !ok || consumed != len(data) {
		return fmt.Errorf("invalid value encoding %x", data)
	}
	*v = value
	return nil
}

// encodedSize is the number of bytes the value occupies on the wire,
// including its flag.
func (v Value) encodedSize() int {
	if v.kind == BytesValue {
		return 2 + len(v.data)
	}
	return 1 + len(v.data)
}

func (v Value) appendTo(buf []byte) []byte {
	buf = append(buf, byte(v.kind))
	if v.kind == BytesValue {
		buf = append(buf, byte(len(v.data)))
	}
	return append(buf, v.data...)
}

// decodeValue parses a value at the start of data. It returns the number of
// bytes consumed; ok is false if the data is truncated or the flag unknown.
func decodeValue(data []byte) (value Value, consumed int, ok bool) {
	if len(data) < 1 {
		return Value{}, 0, false
	}
	rest := data[1:]
	switch ValueKind(data[0]) {
	case EmptyValue:
		return NewEmptyValue(), 1, true
	case Fixed4Value:
		if len(rest) < 4 {
			return Value{}, 0, false
		}
		return NewFixed4Value([4]byte(rest[:4])), 5, true
	case Fixed16Value:
		if len(rest) < 16 {
			return Value{}, 0, false
		}
		return NewFixed16Value([16]byte(rest[:16])), 17, true
	case BytesValue:
		if len(rest) < 1 {
			return Value{}, 0, false
		}
		length := int(rest[0])
		if len(rest)-1 < length {
			return Value{}, 0, false
		}
		value, err := NewBytesValue(rest[1 : 1+length])
		if err != nil {
			return Value{}, 0, false
		}
		return value, 2 + length, true
	default:
		return Value{}, 0, false
	}
}

func cloneOrNil(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return bytes.Clone(data)
}
