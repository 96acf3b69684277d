// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/ir"
	"code.hybscloud.com/netproto/statemachine"
	"code.hybscloud.com/netproto/wire"
)

func helloQuitProtocol() *ast.Protocol {
	helo := &ast.Transition{
		MessageName: "HELO", TargetState: "Greeted", Kind: ast.Read,
		Data: &ast.NamedMessageData{Name: "Helo", Fields: []ast.Field{
			{Name: "domain", Type: ast.Type{Kind: ast.TStr}},
		}},
		Actions: []ast.Action{
			{Kind: ast.ReadStaticOctets, Literal: []byte("HELO ")},
			{Kind: ast.ReadOctetsUntilTerminator, Field: "domain", Terminator: []byte("\r\n")},
		},
	}
	quit := &ast.Transition{
		MessageName: "QUIT", TargetState: ast.ClosedState, Kind: ast.Read,
		Data: &ast.NamedMessageData{Name: "Quit"},
		Actions: []ast.Action{
			{Kind: ast.ReadStaticOctets, Literal: []byte("QUIT\r\n")},
		},
	}
	ok := &ast.Transition{
		MessageName: "OK", TargetState: "Greeted", Kind: ast.Write,
		Data: &ast.NamedMessageData{Name: "Ok"},
		Actions: []ast.Action{
			{Kind: ast.WriteStaticOctets, Literal: []byte("250 OK\r\n")},
		},
	}
	return &ast.Protocol{
		Server: &ast.AgentStates{Order: []string{ast.OpenState, "Greeted", ast.ClosedState}, States: map[string]*ast.State{
			ast.OpenState: {Name: ast.OpenState, MessageOrder: []string{"HELO", "QUIT"}, Transitions: map[string]*ast.Transition{
				"HELO": helo, "QUIT": quit,
			}},
			"Greeted":       {Name: "Greeted", Transitions: map[string]*ast.Transition{}},
			ast.ClosedState: {Name: ast.ClosedState, Transitions: map[string]*ast.Transition{}},
		}},
		Client: &ast.AgentStates{Order: []string{ast.OpenState, "Greeted"}, States: map[string]*ast.State{
			ast.OpenState: {Name: ast.OpenState, MessageOrder: []string{"OK"}, Transitions: map[string]*ast.Transition{"OK": ok}},
			"Greeted":     {Name: "Greeted", Transitions: map[string]*ast.Transition{}},
		}},
	}
}

func newServerMachine(t *testing.T) *statemachine.Machine {
	t.Helper()
	lowered, err := ir.Lower(helloQuitProtocol())
	require.NoError(t, err)

	transitions := map[string]map[string]*ir.Transition{}
	order := map[string][]string{}
	for state, msgs := range lowered[ast.Server] {
		transitions[state] = msgs
		for name := range msgs {
			order[state] = append(order[state], name)
		}
	}
	// Deterministic order matters for discriminator precedence; re-derive it
	// from the declared AST rather than Go's unordered map iteration.
	order[ast.OpenState] = []string{"HELO", "QUIT"}
	return statemachine.New(transitions, order)
}

func TestMachine_DisambiguatesOnFirstByte(t *testing.T) {
	m := newServerMachine(t)
	n, err := m.OnBytesReceived([]byte("HELO example.com\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len("HELO example.com\r\n"), n)
	assert.True(t, m.HasMessage())
	assert.Equal(t, "Greeted", m.MessageState())

	name, data, ok := m.TakeMessage("Greeted")
	require.True(t, ok)
	assert.Equal(t, "HELO", name)
	assert.Equal(t, "example.com", data["domain"].Str)
	assert.Equal(t, "Greeted", m.CurrentState())
}

func TestMachine_QuitClosesConnection(t *testing.T) {
	m := newServerMachine(t)
	n, err := m.OnBytesReceived([]byte("QUIT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len("QUIT\r\n"), n)
	assert.True(t, m.IsClosed())
	assert.Equal(t, ast.ClosedState, m.CurrentState())
}

func TestMachine_AmbiguousPrefixWaitsForMoreBytes(t *testing.T) {
	m := newServerMachine(t)
	n, err := m.OnBytesReceived([]byte("HE"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, m.HasMessage())

	// Ambiguous dispatch consumed nothing, so the caller re-offers "HE"
	// grown with whatever arrived since.
	n, err = m.OnBytesReceived([]byte("HELO example.com\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len("HELO example.com\r\n"), n)
	assert.True(t, m.HasMessage())
}

func TestMachine_EOFMidReadIsTruncationError(t *testing.T) {
	m := newServerMachine(t)
	// "HELO " alone commits to the HELO transition (only candidate whose
	// static prefix still matches) but leaves the terminator-delimited
	// domain field unread.
	n, err := m.OnBytesReceived([]byte("HELO "))
	require.NoError(t, err)
	assert.Equal(t, len("HELO "), n)
	assert.False(t, m.HasMessage())

	m.OnEOF()
	_, err = m.OnBytesReceived(nil)
	assert.ErrorIs(t, err, wire.ErrTruncated)
	assert.False(t, m.HasMessage())
}

func TestMachine_SendMessagePumpsOutputAndTransitions(t *testing.T) {
	lowered, err := ir.Lower(helloQuitProtocol())
	require.NoError(t, err)
	transitions := map[string]map[string]*ir.Transition{}
	order := map[string][]string{}
	for state, msgs := range lowered[ast.Client] {
		transitions[state] = msgs
		for name := range msgs {
			order[state] = append(order[state], name)
		}
	}
	m := statemachine.New(transitions, order)

	require.NoError(t, m.SendMessage("OK", wire.MessageData{}))
	assert.Equal(t, "250 OK\r\n", string(m.PendingOutput()))
	assert.Equal(t, "Greeted", m.CurrentState())

	m.BytesWritten(len("250 OK\r\n"))
	assert.Empty(t, m.PendingOutput())
}
