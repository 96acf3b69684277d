// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/handler"
	"code.hybscloud.com/netproto/ir"
	"code.hybscloud.com/netproto/statemachine"
	"code.hybscloud.com/netproto/wire"
)

func heloQuitProtocol() *ast.Protocol {
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
		MessageName: "OK", TargetState: "Open", Kind: ast.Write,
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
			"Greeted": {Name: "Greeted", MessageOrder: []string{"OK"}, Transitions: map[string]*ast.Transition{
				"OK": ok,
			}},
			ast.ClosedState: {Name: ast.ClosedState, Transitions: map[string]*ast.Transition{}},
		}},
	}
}

func newServerDispatcher(t *testing.T) *handler.Dispatcher {
	t.Helper()
	lowered, err := ir.Lower(heloQuitProtocol())
	require.NoError(t, err)

	transitions := map[string]map[string]*ir.Transition{}
	order := map[string][]string{}
	for state, msgs := range lowered[ast.Server] {
		transitions[state] = msgs
		for name := range msgs {
			order[state] = append(order[state], name)
		}
	}
	order[ast.OpenState] = []string{"HELO", "QUIT"}
	m := statemachine.New(transitions, order)

	table := handler.Table{
		"Greeted": {
			"HELO": func(_ context.Context, req handler.Request) (handler.Response, error) {
				assert.Equal(t, "example.com", req.Data["domain"].Str)
				return handler.Response{MessageName: "OK", Data: wire.MessageData{}}, nil
			},
		},
		ast.ClosedState: {
			"QUIT": func(_ context.Context, _ handler.Request) (handler.Response, error) {
				return handler.Response{}, nil
			},
		},
	}
	return handler.New(m, table, nil)
}

func TestDispatcher_RoutesHeloAndSendsReply(t *testing.T) {
	d := newServerDispatcher(t)
	ctx := context.Background()

	n, err := d.OnBytesReceived(ctx, []byte("HELO example.com\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len("HELO example.com\r\n"), n)
	assert.Equal(t, "250 OK\r\n", string(d.PendingOutput()))
	assert.Equal(t, "Open", d.CurrentState())
}

func TestDispatcher_QuitProducesNoReplyAndCloses(t *testing.T) {
	d := newServerDispatcher(t)
	ctx := context.Background()

	n, err := d.OnBytesReceived(ctx, []byte("QUIT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, len("QUIT\r\n"), n)
	assert.Empty(t, d.PendingOutput())
	assert.True(t, d.IsClosed())
}

func TestDispatcher_UnregisteredMessageIsAnError(t *testing.T) {
	d := newServerDispatcher(t)
	ctx := context.Background()

	table := handler.Table{}
	bare := handler.New(machineOf(t), table, nil)
	_, err := bare.OnBytesReceived(ctx, []byte("HELO example.com\r\n"))
	assert.Error(t, err)
	_ = d
}

func machineOf(t *testing.T) *statemachine.Machine {
	t.Helper()
	lowered, err := ir.Lower(heloQuitProtocol())
	require.NoError(t, err)
	transitions := map[string]map[string]*ir.Transition{}
	order := map[string][]string{}
	for state, msgs := range lowered[ast.Server] {
		transitions[state] = msgs
		for name := range msgs {
			order[state] = append(order[state], name)
		}
	}
	order[ast.OpenState] = []string{"HELO", "QUIT"}
	return statemachine.New(transitions, order)
}
