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
	"errors"
	"fmt"
)

// EntryType identifies the kind of registry object an operation targets.
// The numeric values are the entry type flags used on the wire.
type EntryType byte

const (
	MutableEntry   EntryType = 0x01
	ImmutableEntry EntryType = 0x02
	UtilityToken   EntryType = 0x03
)

func (t EntryType) String() string {
	switch t {
	case MutableEntry:
		return "mutable"
	case ImmutableEntry:
		return "immutable"
	case UtilityToken:
		return "token"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// ParseEntryType is the inverse of EntryType.String.
func ParseEntryType(s string) (EntryType, error) {
	for _, t := range []EntryType{MutableEntry, ImmutableEntry, UtilityToken} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown entry type %q", s)
}

// Supports reports whether operations of the given kind exist for this type.
// Mutable entries support all kinds, immutable entries lack Update and
// tokens only know Creation, OwnershipTransfer and Deletion.
func (t EntryType) Supports(kind OpKind) bool {
	switch t {
	case MutableEntry:
		return kind.valid()
	case ImmutableEntry:
		return kind.valid() && kind != Update
	case UtilityToken:
		return kind == Creation || kind == OwnershipTransfer || kind == Deletion
	default:
		return false
	}
}

// OpKind is the operation performed on a registry object. The numeric
// values are the operation flags used on the wire.
type OpKind byte

const (
	Creation          OpKind = 0x01
	Renewal           OpKind = 0x02
	OwnershipTransfer OpKind = 0x04 // < a token transfer for UtilityToken
	Update            OpKind = 0x08
	Deletion          OpKind = 0x10
)

func (k OpKind) String() string {
	switch k {
	case Creation:
		return "creation"
	case Renewal:
		return "renewal"
	case OwnershipTransfer:
		return "transfer"
	case Update:
		return "update"
	case Deletion:
		return "deletion"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// ParseOpKind is the inverse of OpKind.String.
func ParseOpKind(s string) (OpKind, error) {
	for _, k := range []OpKind{Creation, Renewal, OwnershipTransfer, Update, Deletion} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

func (k OpKind) valid() bool {
	switch k {
	case Creation, Renewal, OwnershipTransfer, Update, Deletion:
		return true
	}
	return false
}

// Operation is a decoded protocol payload. It is a closed union: entry
// operations carry a key and a value, token operations an id and an amount.
// Only combinations accepted by EntryType.Supports can be constructed.
type Operation struct {
	entryType EntryType
	kind      OpKind
	key       []byte
	value     Value
	amount    uint64
}

var errEmptyKey = errors.New("key must not be empty")

// NewEntryOperation creates an operation on a mutable or immutable entry.
func NewEntryOperation(entryType EntryType, kind OpKind, key []byte, value Value) (Operation, error) {
	if entryType != MutableEntry && entryType != ImmutableEntry {
		return Operation{}, fmt.Errorf("%v is not an entry type", entryType)
	}
	if !entryType.Supports(kind) {
		return Operation{}, fmt.Errorf("%v entries do not support %v", entryType, kind)
	}
	if len(key) == 0 {
		return Operation{}, errEmptyKey
	}
	if !value.kind.valid() || (value.kind == BytesValue && value.Len() > MaxBytesValueLength) {
		return Operation{}, fmt.Errorf("invalid value %v", value)
	}
	return Operation{
		entryType: entryType,
		kind:      kind,
		key:       bytes.Clone(key),
		value:     value,
	}, nil
}

// NewTokenOperation creates an operation on a utility token.
func NewTokenOperation(kind OpKind, id []byte, amount uint64) (Operation, error) {
	if !UtilityToken.Supports(kind) {
		return Operation{}, fmt.Errorf("tokens do not support %v", kind)
	}
	if len(id) == 0 {
		return Operation{}, errEmptyKey
	}
	return Operation{
		entryType: UtilityToken,
		kind:      kind,
		key:       bytes.Clone(id),
		amount:    amount,
	}, nil
}

// Type returns the targeted entry type.
func (o Operation) Type() EntryType {
	return o.entryType
}

// Kind returns the kind of the operation.
func (o Operation) Kind() OpKind {
	return o.kind
}

// Key returns a copy of the entry key, or the token id for token operations.
func (o Operation) Key() []byte {
	return bytes.Clone(o.key)
}

// Value returns the entry value; it is empty for token operations.
func (o Operation) Value() Value {
	return o.value
}

// Amount returns the token amount; it is zero for entry operations.
func (o Operation) Amount() uint64 {
	return o.amount
}

// IsToken reports whether this is a utility token operation.
func (o Operation) IsToken() bool {
	return o.entryType == UtilityToken
}

// Equal reports whether both operations encode to the same payload.
func (o Operation) Equal(other Operation) bool {
	return o.entryType == other.entryType &&
		o.kind == other.kind &&
		bytes.Equal(o.key, other.key) &&
		o.value.Equal(other.value) &&
		o.amount == other.amount
}

func (o Operation) String() string {
	if o.IsToken() {
		return fmt.Sprintf("%v %v id=%s amount=%d", o.entryType, o.kind, hex.EncodeToString(o.key), o.amount)
	}
	return fmt.Sprintf("%v %v key=%s value=%v", o.entryType, o.kind, hex.EncodeToString(o.key), o.value)
}
