// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package optree

import (
	"fmt"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/ir"
)

// Build translates one lowered transition into its operation tree,
// mirroring generate.cpp's generate_transition_optree: a read transition's
// tree zero-initializes every declared field, runs the action sequence,
// then snapshots the lexical pad into a dictionary (the resulting
// MessageData); a write transition's tree only runs the action sequence —
// its lexical pad arrives already populated by the caller's outgoing
// MessageData.
func Build(t *ir.Transition) (*Transition, error) {
	actions, err := buildActions(t.Kind, t.Actions)
	if err != nil {
		return nil, fmt.Errorf("transition %q: %w", t.MessageName, err)
	}

	var root *Node
	switch t.Kind {
	case ast.Read:
		init := initActions(t.Data)
		children := make([]*Node, 0, len(init)+len(actions)+1)
		children = append(children, init...)
		children = append(children, actions...)
		children = append(children, &Node{Op: OpLexicalPadAsDict})
		root = &Node{Op: OpSequence, Children: children}
	case ast.Write:
		root = &Node{Op: OpSequence, Children: actions}
	default:
		return nil, fmt.Errorf("transition %q: direction not set", t.MessageName)
	}

	return &Transition{MessageName: t.MessageName, TargetState: t.TargetState, Root: root}, nil
}

// initActions seeds every declared field to a zero int32, matching
// generate.cpp's generate_transition_optree: fields a read transition never
// touches (e.g. ones assigned only inside a conditional action path) must
// still exist in the resulting MessageData.
func initActions(data *ast.NamedMessageData) []*Node {
	if data == nil {
		return nil
	}
	out := make([]*Node, 0, len(data.Fields))
	for _, f := range data.Fields {
		out = append(out, &Node{
			Op:   OpLexicalPadInitialize,
			Name: f.Name,
			Children: []*Node{
				{Op: OpInt32Literal, Int32: 0},
			},
		})
	}
	return out
}

func buildActions(kind ast.Direction, actions []ir.Action) ([]*Node, error) {
	out := make([]*Node, 0, len(actions))
	for _, a := range actions {
		n, err := buildAction(kind, a)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func buildAction(kind ast.Direction, a ir.Action) (*Node, error) {
	switch a.Kind {
	case ir.ReadStaticOctets:
		return &Node{Op: OpReadStaticOctets, Literal: a.Literal}, nil

	case ir.WriteStaticOctets:
		return &Node{Op: OpWriteStaticOctets, Literal: a.Literal}, nil

	case ir.ReadOctetsUntilTerminator:
		read, err := readValueFromOctets(a.FieldType, a.Terminator, a.Escape)
		if err != nil {
			return nil, err
		}
		return &Node{Op: OpLexicalPadSet, Name: a.Field, Children: []*Node{read}}, nil

	case ir.WriteFromIdentifier:
		value := &Node{Op: OpLexicalPadGet, Name: a.Field}
		return writeOctetsFromValue(a.FieldType, value, a.Escape)

	case ir.Loop:
		return buildLoop(kind, a)

	default:
		return nil, fmt.Errorf("unknown action kind %v", a.Kind)
	}
}

// readValueFromOctets mirrors generate.cpp's read_value_from_octets: an int
// field wraps the raw octet read in ReadIntFromAscii, a string field is the
// raw octet read. Escape un-replace runs between the raw read and the type
// conversion, matching wire read order (unescape before interpreting).
func readValueFromOctets(ft ast.Type, terminator []byte, esc *ast.Escape) (*Node, error) {
	raw := &Node{Op: OpReadOctetsUntilTerminator, Terminator: terminator, Escape: esc}
	if esc != nil {
		raw = &Node{Op: OpEscapeUnreplace, Escape: esc, Children: []*Node{raw}}
	}
	switch ft.Kind {
	case ast.TInt:
		return &Node{Op: OpReadIntFromAscii, FieldType: ft, Children: []*Node{raw}}, nil
	case ast.TStr:
		return raw, nil
	default:
		return nil, fmt.Errorf("field type %s: cannot read directly (only int/str/array-of-those)", ft)
	}
}

// writeOctetsFromValue mirrors generate.cpp's write_octets_from_value.
func writeOctetsFromValue(ft ast.Type, value *Node, esc *ast.Escape) (*Node, error) {
	var octets *Node
	switch ft.Kind {
	case ast.TInt:
		octets = &Node{Op: OpIntToAscii, FieldType: ft, Children: []*Node{value}}
	case ast.TStr:
		octets = value
	default:
		return nil, fmt.Errorf("field type %s: cannot write directly (only int/str/array-of-those)", ft)
	}
	if esc != nil {
		octets = &Node{Op: OpEscapeReplace, Escape: esc, Children: []*Node{octets}}
	}
	return &Node{Op: OpWriteOctets, Children: []*Node{octets}}, nil
}

// buildLoop handles both directions, matching generate.cpp's two
// overloaded visit_action(Loop) functions (one for WriteTransition, one for
// ReadTransition): a write loop calls a callable over every element of the
// already-populated collection, then writes the terminator; a read loop
// repeatedly invokes a zero-argument callable — each invocation reads one
// element and tests for the terminator — until GenerateList's stopping
// condition (TerminateListIfReadAhead) fires.
func buildLoop(kind ast.Direction, a ir.Action) (*Node, error) {
	inner, err := buildActions(kind, a.Inner)
	if err != nil {
		return nil, fmt.Errorf("loop over %q: %w", a.Collection, err)
	}

	switch kind {
	case ast.Write:
		body := &Node{Op: OpSequence, Children: inner}
		callable := &Node{Op: OpStaticCallable, Name: a.Variable, Children: []*Node{body}}
		return &Node{Op: OpSequence, Children: []*Node{
			{Op: OpFunctionCallForEach, Children: []*Node{
				callable,
				{Op: OpLexicalPadGet, Name: a.Collection},
			}},
			{Op: OpWriteStaticOctets, Literal: a.Terminator},
		}}, nil

	case ast.Read:
		bodyChildren := make([]*Node, 0, len(inner)+2)
		bodyChildren = append(bodyChildren, inner...)
		bodyChildren = append(bodyChildren,
			&Node{Op: OpTerminateListIfReadAhead, Terminator: a.Terminator},
			&Node{Op: OpLexicalPadGet, Name: a.Variable},
		)
		body := &Node{Op: OpSequence, Children: bodyChildren}
		// GenerateList invokes its single StaticCallable child repeatedly,
		// once per element, until that invocation's accumulator carries the
		// TerminateListIfReadAhead stop signal (generate.cpp wraps the body
		// the same way before handing it to GenerateList).
		callable := &Node{Op: OpStaticCallable, Children: []*Node{body}}
		return &Node{
			Op:   OpLexicalPadSet,
			Name: a.Collection,
			Children: []*Node{
				{Op: OpGenerateList, Children: []*Node{callable}},
			},
		}, nil

	default:
		return nil, fmt.Errorf("loop over %q: direction not set", a.Collection)
	}
}
