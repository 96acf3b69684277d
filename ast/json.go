// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ast

import (
	"encoding/json"
	"fmt"
)

// This file gives Protocol's tagged-union enums (Direction, ActionKind,
// TypeKind) a string JSON encoding, so a Protocol can round-trip through
// the file format cmd/netprotogen's CLI reads (§6.3's "input DSL file
// path") as the structured stand-in for the concrete-syntax DSL this
// package declines to parse (§1 Non-goals: the lexer/parser are an
// external collaborator). Every other field uses encoding/json's default
// exported-field-name encoding.

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "read":
		*d = Read
	case "write":
		*d = Write
	case "unset", "":
		*d = DirectionUnset
	default:
		return fmt.Errorf("ast: unknown direction %q", s)
	}
	return nil
}

func (k ActionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ActionKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "ReadStaticOctets":
		*k = ReadStaticOctets
	case "WriteStaticOctets":
		*k = WriteStaticOctets
	case "ReadOctetsUntilTerminator":
		*k = ReadOctetsUntilTerminator
	case "WriteFromIdentifier":
		*k = WriteFromIdentifier
	case "Loop":
		*k = Loop
	default:
		return fmt.Errorf("ast: unknown action kind %q", s)
	}
	return nil
}

func (t TypeKind) MarshalJSON() ([]byte, error) {
	switch t {
	case TInt:
		return json.Marshal("int")
	case TStr:
		return json.Marshal("str")
	case TArray:
		return json.Marshal("array")
	case TTuple:
		return json.Marshal("tuple")
	default:
		return nil, fmt.Errorf("ast: unknown type kind %d", uint8(t))
	}
}

func (t *TypeKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "int":
		*t = TInt
	case "str":
		*t = TStr
	case "array":
		*t = TArray
	case "tuple":
		*t = TTuple
	default:
		return fmt.Errorf("ast: unknown type kind %q", s)
	}
	return nil
}

func (a Agent) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Agent) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "client":
		*a = Client
	case "server":
		*a = Server
	default:
		return fmt.Errorf("ast: unknown agent %q", s)
	}
	return nil
}
