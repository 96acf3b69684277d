// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ir lowers a transition's surface ast.Action list into the
// normalized per-transition action list that wire and vm actually execute
// (spec §4, "Action IR"), and computes the lookahead discriminator used by
// statemachine (spec §4.3).
//
// Lowering requires every ReadOctetsUntilTerminator action to already carry
// a terminator: the concrete-syntax parser (out of scope) always attaches
// one, either the literal following a field inside a tokens<> sequence or
// the enclosing block's declared terminator for the sequence's last field
// (original_source/src/networkprotocoldsl/sema/partstoreadactions.cpp,
// PartSequenceFragmentToReadActions). A terminator-less field read reaching
// Lower is a malformed AST and is rejected.
package ir

import (
	"fmt"

	"code.hybscloud.com/netproto/ast"
)

// ActionKind is the lowered action vocabulary (spec §3's Action union).
type ActionKind uint8

const (
	ReadStaticOctets ActionKind = iota
	WriteStaticOctets
	ReadOctetsUntilTerminator
	WriteFromIdentifier
	Loop
)

func (k ActionKind) String() string {
	switch k {
	case ReadStaticOctets:
		return "ReadStaticOctets"
	case WriteStaticOctets:
		return "WriteStaticOctets"
	case ReadOctetsUntilTerminator:
		return "ReadOctetsUntilTerminator"
	case WriteFromIdentifier:
		return "WriteFromIdentifier"
	case Loop:
		return "Loop"
	default:
		return fmt.Sprintf("ActionKind(%d)", uint8(k))
	}
}

// Action is the lowered, ready-to-execute form of ast.Action.
type Action struct {
	Kind ActionKind

	Literal    []byte
	Field      string
	FieldType  ast.Type
	Terminator []byte
	Escape     *ast.Escape

	// Loop
	Variable   string
	Collection string
	ElemType   ast.Type
	Inner      []Action
}

// Transition is the lowered form of ast.Transition.
type Transition struct {
	MessageName string
	TargetState string
	Data        *ast.NamedMessageData
	Kind        ast.Direction
	Actions     []Action
}

// typeResolver maps an identifier in scope to its Type, the Go analogue of
// generate.cpp's ExtractTypeClosure. A transition's top-level resolver looks
// fields up in its NamedMessageData; buildLoop wraps it (see
// wrapLoopVariable) so a Loop's inner actions can additionally resolve its
// own loop variable to the collection's element type, exactly as
// generate.cpp's create_get_type_wrapper does.
type typeResolver func(name string) (ast.Type, error)

// Lower lowers every transition in p into its Action-IR form, keyed by
// (agent, state, message).
func Lower(p *ast.Protocol) (map[ast.Agent]map[string]map[string]*Transition, error) {
	out := map[ast.Agent]map[string]map[string]*Transition{}
	for _, as := range []struct {
		agent  ast.Agent
		states *ast.AgentStates
	}{{ast.Client, p.Client}, {ast.Server, p.Server}} {
		if as.states == nil {
			continue
		}
		out[as.agent] = map[string]map[string]*Transition{}
		for _, stateName := range as.states.Order {
			s := as.states.States[stateName]
			out[as.agent][stateName] = map[string]*Transition{}
			for _, msgName := range s.MessageOrder {
				t := s.Transitions[msgName]
				lowered, err := lowerTransition(t)
				if err != nil {
					return nil, fmt.Errorf("%s state %q transition %q: %w", as.agent, stateName, msgName, err)
				}
				out[as.agent][stateName][msgName] = lowered
			}
		}
	}
	return out, nil
}

func lowerTransition(t *ast.Transition) (*Transition, error) {
	resolve := resolverFor(t.Data)
	actions, err := lowerActions(resolve, t.Actions)
	if err != nil {
		return nil, err
	}
	return &Transition{
		MessageName: t.MessageName,
		TargetState: t.TargetState,
		Data:        t.Data,
		Kind:        t.Kind,
		Actions:     actions,
	}, nil
}

func resolverFor(data *ast.NamedMessageData) typeResolver {
	return func(name string) (ast.Type, error) {
		if data == nil {
			return ast.Type{}, fmt.Errorf("field %q: no MessageData declared", name)
		}
		f, ok := data.Field(name)
		if !ok {
			return ast.Type{}, fmt.Errorf("field %q: not declared in MessageData", name)
		}
		return f.Type, nil
	}
}

// wrapLoopVariable mirrors generate.cpp's create_get_type_wrapper: within a
// Loop's inner actions, the loop variable resolves to the collection's
// element type; every other identifier still resolves through the outer
// scope's resolver.
func wrapLoopVariable(outer typeResolver, variable string, elem ast.Type) typeResolver {
	return func(name string) (ast.Type, error) {
		if name == variable {
			return elem, nil
		}
		return outer(name)
	}
}

func lowerActions(resolve typeResolver, actions []ast.Action) ([]Action, error) {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		lowered, err := lowerAction(resolve, a)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered)
	}
	return out, nil
}

func lowerAction(resolve typeResolver, a ast.Action) (Action, error) {
	switch a.Kind {
	case ast.ReadStaticOctets:
		return Action{Kind: ReadStaticOctets, Literal: a.Literal}, nil

	case ast.WriteStaticOctets:
		return Action{Kind: WriteStaticOctets, Literal: a.Literal}, nil

	case ast.ReadOctetsUntilTerminator:
		ft, err := resolve(a.Field)
		if err != nil {
			return Action{}, err
		}
		if len(a.Terminator) == 0 {
			// The concrete-syntax parser (out of scope, spec §6.1) always
			// attaches a terminator: the literal that follows a field
			// inside a tokens<> block if there is one, else the block's
			// declared terminator (original_source
			// sema/partstoreadactions.cpp: PartSequenceFragmentToReadActions
			// appends the block terminator to the last field of the token
			// sequence before lowering each field to
			// ReadOctetsUntilTerminator). A bare field action reaching
			// here with no terminator is a malformed AST.
			return Action{}, fmt.Errorf("field %q: ReadOctetsUntilTerminator requires a terminator", a.Field)
		}
		return Action{
			Kind:       ReadOctetsUntilTerminator,
			Field:      a.Field,
			FieldType:  ft,
			Terminator: a.Terminator,
			Escape:     a.Escape,
		}, nil

	case ast.WriteFromIdentifier:
		ft, err := resolve(a.Field)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: WriteFromIdentifier, Field: a.Field, FieldType: ft, Escape: a.Escape}, nil

	case ast.Loop:
		ft, err := resolve(a.Collection)
		if err != nil {
			return Action{}, err
		}
		if ft.Kind != ast.TArray {
			return Action{}, fmt.Errorf("collection %q: Loop requires an array field, got %s", a.Collection, ft)
		}
		innerResolve := wrapLoopVariable(resolve, a.Variable, *ft.Element)
		inner, err := lowerActions(innerResolve, a.Inner)
		if err != nil {
			return Action{}, err
		}
		return Action{
			Kind:       Loop,
			Variable:   a.Variable,
			Collection: a.Collection,
			ElemType:   *ft.Element,
			Terminator: a.Terminator,
			Inner:      inner,
		}, nil

	default:
		return Action{}, fmt.Errorf("unknown action kind %v", a.Kind)
	}
}
