// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vm is the continuation-based interpreter that executes an
// optree.Node tree with cooperative suspension for I/O and host callbacks
// (spec §4.4). Grounded on
// original_source/src/networkprotocoldsl/continuation.cpp and
// executionstackframe.cpp for the stack-of-frames step() model, and on
// hayabusa-cloud-framer's internal.go retry/yield idiom for the transport
// pump (see iopump.go).
package vm

import (
	"fmt"

	"code.hybscloud.com/netproto/optree"
)

// ValueKind tags the Value union (spec §4.4 "Values").
type ValueKind uint8

const (
	VInt32 ValueKind = iota
	VBool
	VOctets
	VList
	VDict
	VCallable
	VError
	// VControlStop is TerminateListIfReadAhead's signal that the enclosing
	// GenerateList has seen its terminator and must stop invoking its body.
	// It never escapes vm: OpGenerateList's execute (frame.go) drops it from
	// the accumulator, keeping only the element it carries in List, before
	// the list value is built.
	VControlStop
)

// Value is the tagged union every opcode consumes and produces. Octets,
// List and Dict are shared, never cloned on read — Continuations executing
// the same StaticCallable body concurrently must never observe one
// another's mutation, so every opcode that would "modify" a List/Dict
// instead produces a new Value (see Dict.With / append-based list growth).
type Value struct {
	Kind ValueKind

	Int32  int32
	Bool   bool
	Octets []byte
	List   []Value
	Dict   *Dict

	Callable *Callable

	// VError: a runtime-error-kind Value (spec §4.6), carried as data so a
	// Dynamic-input opcode can accept it as an ordinary child result instead
	// of aborting the whole continuation.
	ErrKind ErrorKind
	ErrMsg  string
}

func Int32(v int32) Value  { return Value{Kind: VInt32, Int32: v} }
func Bool(v bool) Value    { return Value{Kind: VBool, Bool: v} }
func Octets(v []byte) Value { return Value{Kind: VOctets, Octets: v} }
func List(v []Value) Value { return Value{Kind: VList, List: v} }
func DictValue(d *Dict) Value { return Value{Kind: VDict, Dict: d} }
func ErrValue(kind ErrorKind, msg string) Value {
	return Value{Kind: VError, ErrKind: kind, ErrMsg: msg}
}

func (v Value) String() string {
	switch v.Kind {
	case VInt32:
		return fmt.Sprintf("%d", v.Int32)
	case VBool:
		return fmt.Sprintf("%t", v.Bool)
	case VOctets:
		return fmt.Sprintf("%q", v.Octets)
	case VList:
		return fmt.Sprintf("list(%d)", len(v.List))
	case VDict:
		return fmt.Sprintf("dict(%d)", v.Dict.Len())
	case VCallable:
		return "callable"
	case VError:
		return fmt.Sprintf("error(%s: %s)", v.ErrKind, v.ErrMsg)
	case VControlStop:
		return "controlStop"
	default:
		return "?"
	}
}

// Callable pairs a reusable subtree with the parameter names its lexical
// pad receives on invocation (spec §4.4). Immutable; safe to share.
type Callable struct {
	Body   *optree.Node
	Params []string
}

// Dict is an immutable-from-the-outside ordered map, the runtime shape of a
// MessageData once a read transition completes (optree's LexicalPadAsDict).
type Dict struct {
	keys   []string
	values map[string]Value
}

func NewDict() *Dict { return &Dict{values: map[string]Value{}} }

func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// With returns a new Dict with key set to value, leaving the receiver
// untouched (spec's "dictionary (shared ordered map)" — sharing requires
// persistence under mutation).
func (d *Dict) With(key string, value Value) *Dict {
	out := &Dict{values: make(map[string]Value, len(d.values)+1)}
	for k, v := range d.values {
		out.values[k] = v
	}
	if _, existed := d.values[key]; !existed {
		out.keys = append(append([]string{}, d.keys...), key)
	} else {
		out.keys = append([]string{}, d.keys...)
	}
	out.values[key] = value
	return out
}

func (d *Dict) Keys() []string { return d.keys }

// ErrorKind is the interpreter-only subset of spec §7's error taxonomy.
type ErrorKind uint8

const (
	NameError ErrorKind = iota
	TypeError
	ProtocolMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case NameError:
		return "NameError"
	case TypeError:
		return "TypeError"
	case ProtocolMismatch:
		return "ProtocolMismatch"
	default:
		return "UnknownError"
	}
}
