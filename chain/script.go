// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package chain

import "encoding/binary"

const (
	opReturn    = 0x6a
	opPushData1 = 0x4c
	opPushData2 = 0x4d
	opPushData4 = 0x4e
)

func parsePushes(script []byte) ([]byte, bool) {
	var res []byte
	for len(script) > 0 {
		op := script[0]
		script = script[1:]

		var size int
		switch {
		case op == 0x00:
			size = 0
		case op < opPushData1:
			size = int(op)
		case op == opPushData1:
			if len(script) < 1 {
				return nil, false
			}
			size = int(script[0])
			script = script[1:]
		case op == opPushData2:
			if len(script) < 2 {
				return nil, false
			}
			size = int(binary.LittleEndian.Uint16(script))
			script = script[2:]
		case op == opPushData4:
			if len(script) < 4 {
				return nil, false
			}
			size64 := uint64(binary.LittleEndian.Uint32(script))
			script = script[4:]
			if size64 > uint64(len(script)) {
				return nil, false
			}
			size = int(size64)
		default:
			return nil, false
		}

		if size > len(script) {
			return nil, false
		}
		res = append(res, script[:size]...)
		script = script[size:]
	}
	return res, true
}

// DataScript builds an OP_RETURN script pushing the given payload.
func DataScript(payload []byte) []byte {
	script := []byte{opReturn}
	switch n := len(payload); {
	case n < opPushData1:
		script = append(script, byte(n))
	case n <= 0xff:
		script = append(script, opPushData1, byte(n))
	case n <= 0xffff:
		script = append(script, opPushData2)
		script = binary.LittleEndian.AppendUint16(script, uint16(n))
	default:
		script = append(script, opPushData4)
		script = binary.LittleEndian.AppendUint32(script, uint32(n))
	}
	return append(script, payload...)
}
