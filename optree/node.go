// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package optree

import "code.hybscloud.com/netproto/ast"

// Node is one operation-tree node: an opcode tag plus the immutable payload
// that opcode needs, plus child subtrees whose evaluated values become its
// arguments. Built once by Build and never mutated afterward — every
// Node is safe to share by pointer across however many Continuations
// execute the same protocol (Design Note 2: shared immutable subtrees).
type Node struct {
	Op Opcode

	// Literal payload, by opcode:
	//   OpReadStaticOctets / OpWriteStaticOctets: Literal
	//   OpReadOctetsUntilTerminator / OpTerminateListIfReadAhead: Terminator
	//   OpLexicalPadInitialize / OpLexicalPadGet / OpLexicalPadSet /
	//     OpUnaryCallback: Name
	//   OpStaticCallable: Name is the single parameter name the callable's
	//     pad binding receives on each invocation, or "" for zero params;
	//     Children[0] is the callable's body, evaluated lazily per
	//     invocation rather than as a normal argument
	//   OpInt32Literal: Int32
	//   OpEscapeReplace / OpEscapeUnreplace: Escape
	//   OpReadIntFromAscii / OpIntToAscii: FieldType (width/signedness)
	Literal    []byte
	Terminator []byte
	Name       string
	Int32      int32
	Escape     *ast.Escape
	FieldType  ast.Type

	Children []*Node
}

// Callable is a named, reusable subtree: a loop body or a per-message
// transition body, paired with the parameter names its lexical pad receives
// on each invocation (spec §4.4 Values: "callable (opcode subtree +
// parameter names)"). Distinct from Node so the VM can hold a Value tagged
// Callable without conflating "a subtree" with "a subtree plus a calling
// convention".
type Callable struct {
	Body   *Node
	Params []string
}

// Transition is the built operation tree for one protocol transition. Root
// holds the whole sequence; for a read transition its first children are
// the lexical-pad initializations of every MessageData field (mirrors
// generate.cpp's generate_transition_optree init_ops, which seed every
// MessageData field to Int32Literal{0} before the action sequence touches
// it), followed by the actions.
type Transition struct {
	MessageName string
	TargetState string
	Root        *Node
}
