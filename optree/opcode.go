// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package optree builds the operation tree the interpreter VM walks at
// runtime (spec §4.4): "a tree of opcodes where each node has an opcode tag
// and a list of child subtrees whose values become its arguments." Building
// is grounded on
// original_source/src/networkprotocoldsl/generate.cpp's AST→optree
// translation (the same file the code generator uses to emit the static
// parser/serializer), rewritten here to start from ir.Action rather than the
// raw surface ast.Action, since lowering has already resolved field types
// and terminators.
package optree

import "fmt"

// Opcode tags a Node's behavior. Each family matches spec §4.4's
// classification.
type Opcode uint8

const (
	// Control-flow
	OpSequence Opcode = iota
	OpFunctionCallForEach
	OpGenerateList
	OpStaticCallable

	// I/O
	OpReadStaticOctets
	OpWriteStaticOctets
	OpReadOctetsUntilTerminator
	OpWriteOctets
	OpTerminateListIfReadAhead

	// Interpreted (pure computation)
	OpIntToAscii
	OpReadIntFromAscii
	OpEscapeUnreplace
	OpEscapeReplace
	OpInt32Literal

	// Lexical pad
	OpLexicalPadInitialize
	OpLexicalPadGet
	OpLexicalPadSet
	OpLexicalPadAsDict

	// Dynamic input / dictionary
	OpDictionaryInitialize

	// Callback
	OpUnaryCallback
)

func (o Opcode) String() string {
	switch o {
	case OpSequence:
		return "Sequence"
	case OpFunctionCallForEach:
		return "FunctionCallForEach"
	case OpGenerateList:
		return "GenerateList"
	case OpStaticCallable:
		return "StaticCallable"
	case OpReadStaticOctets:
		return "ReadStaticOctets"
	case OpWriteStaticOctets:
		return "WriteStaticOctets"
	case OpReadOctetsUntilTerminator:
		return "ReadOctetsUntilTerminator"
	case OpWriteOctets:
		return "WriteOctets"
	case OpTerminateListIfReadAhead:
		return "TerminateListIfReadAhead"
	case OpIntToAscii:
		return "IntToAscii"
	case OpReadIntFromAscii:
		return "ReadIntFromAscii"
	case OpEscapeUnreplace:
		return "EscapeUnreplace"
	case OpEscapeReplace:
		return "EscapeReplace"
	case OpInt32Literal:
		return "Int32Literal"
	case OpLexicalPadInitialize:
		return "LexicalPadInitialize"
	case OpLexicalPadGet:
		return "LexicalPadGet"
	case OpLexicalPadSet:
		return "LexicalPadSet"
	case OpLexicalPadAsDict:
		return "LexicalPadAsDict"
	case OpDictionaryInitialize:
		return "DictionaryInitialize"
	case OpUnaryCallback:
		return "UnaryCallback"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(o))
	}
}
