// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"strings"

	"github.com/DarkWingMcQuack/forge-core-sub000/chain"
	"github.com/DarkWingMcQuack/forge-core-sub000/forge"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

var (
	typeFlag = cli.StringFlag{
		Name:  "type",
		Usage: "entry type: mutable, immutable or token",
		Value: "mutable",
	}
	opFlag = cli.StringFlag{
		Name:     "op",
		Usage:    "operation: creation, renewal, transfer, update or deletion",
		Required: true,
	}
	keyFlag = cli.StringFlag{
		Name:     "key",
		Usage:    "key of the entry or id of the token, hex if prefixed with 0x",
		Required: true,
	}
	valueKindFlag = cli.StringFlag{
		Name:  "value-kind",
		Usage: "kind of the entry value: empty, fixed4, fixed16 or bytes",
		Value: "empty",
	}
	valueFlag = cli.StringFlag{
		Name:  "value",
		Usage: "hex encoded entry value",
	}
	amountFlag = cli.Uint64Flag{
		Name:  "amount",
		Usage: "token amount",
	}
	scriptFlag = cli.BoolFlag{
		Name:  "script",
		Usage: "produce or consume a complete data output script instead of the bare payload",
	}
)

var DecodeCmd = cli.Command{
	Action:    doDecode,
	Name:      "decode",
	Usage:     "decodes a hex encoded operation payload",
	ArgsUsage: "<hex payload>",
	Flags:     []cli.Flag{&scriptFlag},
}

var EncodeCmd = cli.Command{
	Action: doEncode,
	Name:   "encode",
	Usage:  "produces the hex encoded payload of an operation",
	Flags: []cli.Flag{
		&typeFlag,
		&opFlag,
		&keyFlag,
		&valueKindFlag,
		&valueFlag,
		&amountFlag,
		&scriptFlag,
	},
}

func doDecode(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing payload parameter")
	}
	data, err := parseHex(context.Args().Get(0))
	if err != nil {
		return err
	}
	if context.Bool(scriptFlag.Name) {
		out := chain.TxOut{Script: data}
		payload, ok := out.Payload()
		if !ok {
			return fmt.Errorf("not a data output script")
		}
		data = payload
	}
	if !forge.IsProtocolPayload(data) {
		return fmt.Errorf("payload does not start with the protocol id %x", forge.ProtocolID)
	}
	op, ok := forge.Decode(data)
	if !ok {
		return fmt.Errorf("malformed operation")
	}
	fmt.Println(op)
	return nil
}

func doEncode(context *cli.Context) error {
	op, err := operationFromFlags(context)
	if err != nil {
		return err
	}
	payload := forge.Encode(op)
	if context.Bool(scriptFlag.Name) {
		payload = chain.DataScript(payload)
	}
	fmt.Println(hexutil.Encode(payload))
	return nil
}

func operationFromFlags(context *cli.Context) (forge.Operation, error) {
	entryType, err := forge.ParseEntryType(context.String(typeFlag.Name))
	if err != nil {
		return forge.Operation{}, err
	}
	kind, err := forge.ParseOpKind(context.String(opFlag.Name))
	if err != nil {
		return forge.Operation{}, err
	}
	key := []byte(context.String(keyFlag.Name))
	if strings.HasPrefix(string(key), "0x") {
		if key, err = parseHex(string(key)); err != nil {
			return forge.Operation{}, err
		}
	}

	if entryType == forge.UtilityToken {
		return forge.NewTokenOperation(kind, key, context.Uint64(amountFlag.Name))
	}
	valueKind, err := forge.ParseValueKind(context.String(valueKindFlag.Name))
	if err != nil {
		return forge.Operation{}, err
	}
	var data []byte
	if raw := context.String(valueFlag.Name); raw != "" {
		if data, err = parseHex(raw); err != nil {
			return forge.Operation{}, err
		}
	}
	value, err := forge.NewValue(valueKind, data)
	if err != nil {
		return forge.Operation{}, err
	}
	return forge.NewEntryOperation(entryType, kind, key, value)
}

// parseHex accepts hex strings with or without 0x prefix.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return data, nil
}
