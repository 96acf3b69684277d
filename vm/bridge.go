// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/wire"
)

// dictToMessageData converts a completed read transition's lexical-pad
// snapshot into the untyped MessageData statemachine/handler and the
// codegen package's generated structs already speak, widening the VM's
// 32-bit integers into wire.Value's 64-bit Int and turning raw octets into
// Go strings for TStr fields.
func dictToMessageData(d *Dict, fields []ast.Field) wire.MessageData {
	out := make(wire.MessageData, len(fields))
	for _, f := range fields {
		v, ok := d.Get(f.Name)
		if !ok {
			continue
		}
		out[f.Name] = valueToWire(v, f.Type)
	}
	return out
}

func valueToWire(v Value, t ast.Type) wire.Value {
	switch t.Kind {
	case ast.TInt:
		return wire.Value{Kind: ast.TInt, Int: int64(v.Int32)}
	case ast.TStr:
		return wire.Value{Kind: ast.TStr, Str: string(v.Octets)}
	case ast.TArray:
		elems := make([]wire.Value, len(v.List))
		for i, e := range v.List {
			elems[i] = valueToWire(e, *t.Element)
		}
		return wire.Value{Kind: ast.TArray, Array: elems}
	default:
		return wire.Value{}
	}
}

// messageDataToPad is dictToMessageData's inverse, populating a fresh Pad
// with narrowed int32s and octet-backed strings ready for a write
// transition's root, which reads its fields back out via OpLexicalPadGet.
func messageDataToPad(data wire.MessageData, fields []ast.Field) *Pad {
	p := NewPad()
	for _, f := range fields {
		wv, ok := data[f.Name]
		if !ok {
			continue
		}
		p.Initialize(f.Name, wireToValue(wv, f.Type))
	}
	return p
}

func wireToValue(wv wire.Value, t ast.Type) Value {
	switch t.Kind {
	case ast.TInt:
		return Int32(int32(wv.Int))
	case ast.TStr:
		return Octets([]byte(wv.Str))
	case ast.TArray:
		elems := make([]Value, len(wv.Array))
		for i, e := range wv.Array {
			elems[i] = wireToValue(e, *t.Element)
		}
		return List(elems)
	default:
		return Value{}
	}
}
