// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netproto/ast"
)

func agentStates(order []string, states map[string]*ast.State) *ast.AgentStates {
	return &ast.AgentStates{Order: order, States: states}
}

func basicState(name string, transitions ...*ast.Transition) *ast.State {
	s := &ast.State{Name: name, Transitions: map[string]*ast.Transition{}}
	for _, t := range transitions {
		s.MessageOrder = append(s.MessageOrder, t.MessageName)
		s.Transitions[t.MessageName] = t
	}
	return s
}

func TestValidate_MissingOpenAndClosed(t *testing.T) {
	p := &ast.Protocol{
		Client: agentStates([]string{"Foo"}, map[string]*ast.State{
			"Foo": basicState("Foo"),
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState:   basicState(ast.OpenState),
			ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	err := ast.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required state "Open"`)
	assert.Contains(t, err.Error(), `missing required state "Closed"`)
}

func TestValidate_MixedDirection(t *testing.T) {
	read := &ast.Transition{MessageName: "A", TargetState: ast.ClosedState, Kind: ast.Read}
	write := &ast.Transition{MessageName: "B", TargetState: ast.ClosedState, Kind: ast.Write}
	open := basicState(ast.OpenState, read, write)
	closed := basicState(ast.ClosedState)
	p := &ast.Protocol{
		Client: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: open, ast.ClosedState: closed,
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: basicState(ast.OpenState), ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	err := ast.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixes read transitions")
}

func TestValidate_UndefinedTarget(t *testing.T) {
	bad := &ast.Transition{MessageName: "A", TargetState: "Nowhere", Kind: ast.Read}
	open := basicState(ast.OpenState, bad)
	p := &ast.Protocol{
		Client: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: open, ast.ClosedState: basicState(ast.ClosedState),
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: basicState(ast.OpenState), ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	err := ast.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `targets undefined state "Nowhere"`)
}

func TestValidate_NonTerminalNonClosedWithNoTransitions(t *testing.T) {
	p := &ast.Protocol{
		Client: agentStates([]string{ast.OpenState, "Stuck", ast.ClosedState}, map[string]*ast.State{
			ast.OpenState:   basicState(ast.OpenState, &ast.Transition{MessageName: "Go", TargetState: "Stuck", Kind: ast.Read}),
			"Stuck":         basicState("Stuck"),
			ast.ClosedState: basicState(ast.ClosedState),
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: basicState(ast.OpenState), ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	err := ast.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `state "Stuck" has no outgoing transitions`)
}

func TestValidate_FieldNotDeclared(t *testing.T) {
	t1 := &ast.Transition{
		MessageName: "Cmd",
		TargetState: ast.ClosedState,
		Kind:        ast.Read,
		Data:        &ast.NamedMessageData{Name: "Cmd", Fields: nil},
		Actions: []ast.Action{
			{Kind: ast.ReadOctetsUntilTerminator, Field: "missing", Terminator: []byte("\r\n")},
		},
	}
	open := basicState(ast.OpenState, t1)
	p := &ast.Protocol{
		Client: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: open, ast.ClosedState: basicState(ast.ClosedState),
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: basicState(ast.OpenState), ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	err := ast.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "missing" not declared`)
}

func TestValidate_IndistinguishablePrefix(t *testing.T) {
	a := &ast.Transition{MessageName: "A", TargetState: ast.ClosedState, Kind: ast.Read,
		Actions: []ast.Action{{Kind: ast.ReadStaticOctets, Literal: []byte("HELLO")}}}
	b := &ast.Transition{MessageName: "B", TargetState: ast.ClosedState, Kind: ast.Read,
		Actions: []ast.Action{{Kind: ast.ReadStaticOctets, Literal: []byte("HELLO")}}}
	open := basicState(ast.OpenState, a, b)
	p := &ast.Protocol{
		Client: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: open, ast.ClosedState: basicState(ast.ClosedState),
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: basicState(ast.OpenState), ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	err := ast.Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indistinguishable first static prefix")
}

func TestValidate_Valid(t *testing.T) {
	greet := &ast.Transition{
		MessageName: "Greeting",
		TargetState: ast.ClosedState,
		Kind:        ast.Write,
		Data:        &ast.NamedMessageData{Name: "Greeting", Fields: []ast.Field{{Name: "msg", Type: ast.Type{Kind: ast.TStr}}}},
		Actions: []ast.Action{
			{Kind: ast.WriteStaticOctets, Literal: []byte("220 ")},
			{Kind: ast.WriteFromIdentifier, Field: "msg"},
			{Kind: ast.WriteStaticOctets, Literal: []byte("\r\n")},
		},
	}
	open := basicState(ast.OpenState, greet)
	readGreet := &ast.Transition{
		MessageName: "Greeting",
		TargetState: ast.ClosedState,
		Kind:        ast.Read,
		Data:        &ast.NamedMessageData{Name: "Greeting", Fields: []ast.Field{{Name: "msg", Type: ast.Type{Kind: ast.TStr}}}},
		Actions: []ast.Action{
			{Kind: ast.ReadStaticOctets, Literal: []byte("220 ")},
			{Kind: ast.ReadOctetsUntilTerminator, Field: "msg", Terminator: []byte("\r\n")},
		},
	}
	p := &ast.Protocol{
		Client: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: basicState(ast.OpenState, readGreet), ast.ClosedState: basicState(ast.ClosedState),
		}),
		Server: agentStates([]string{ast.OpenState, ast.ClosedState}, map[string]*ast.State{
			ast.OpenState: open, ast.ClosedState: basicState(ast.ClosedState),
		}),
	}
	assert.NoError(t, ast.Validate(p))
}
