// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/codegen"
)

func heloProtocol() *ast.Protocol {
	heloData := &ast.NamedMessageData{
		Name: "Helo",
		Fields: []ast.Field{
			{Name: "domain", Type: ast.Type{Kind: ast.TStr}},
			{Name: "flags", Type: ast.Type{Kind: ast.TArray, Element: &ast.Type{Kind: ast.TInt}}},
		},
	}
	okData := &ast.NamedMessageData{Name: "Ok", Fields: []ast.Field{
		{Name: "code", Type: ast.Type{Kind: ast.TInt, Unsigned: true}},
	}}

	server := &ast.AgentStates{
		Order: []string{ast.OpenState, "Greeted", ast.ClosedState},
		States: map[string]*ast.State{
			ast.OpenState: {
				Name:         ast.OpenState,
				MessageOrder: []string{"HELO"},
				Transitions: map[string]*ast.Transition{
					"HELO": {MessageName: "HELO", TargetState: "Greeted", Data: heloData, Kind: ast.Read},
				},
			},
			"Greeted": {
				Name:         "Greeted",
				MessageOrder: []string{"OK"},
				Transitions: map[string]*ast.Transition{
					"OK": {MessageName: "OK", TargetState: ast.ClosedState, Data: okData, Kind: ast.Write},
				},
			},
			ast.ClosedState: {Name: ast.ClosedState},
		},
	}
	return &ast.Protocol{
		Name:   "helo",
		Server: server,
		Types:  []ast.NamedMessageData{*heloData, *okData},
	}
}

func TestGenerator_EmitsExpectedFiles(t *testing.T) {
	gen := codegen.New("heloproto", heloProtocol())
	files, err := gen.Generate()
	require.NoError(t, err)

	require.Contains(t, files, "messages.go")
	require.Contains(t, files, "states.go")
	require.Contains(t, files, "handlertable.go")

	messages := string(files["messages.go"])
	assert.Contains(t, messages, "type HeloData struct")
	assert.Contains(t, messages, "Domain")
	assert.Contains(t, messages, "string")
	assert.Contains(t, messages, "Flags")
	assert.Contains(t, messages, "[]int64")
	assert.Contains(t, messages, "func (m HeloData) ToMessageData() wire.MessageData")
	assert.Contains(t, messages, "func HeloDataFromMessageData(d wire.MessageData) HeloData")
	assert.Contains(t, messages, "type OkData struct")
	assert.Contains(t, messages, "uint64")

	states := string(files["states.go"])
	assert.Contains(t, states, `HeloStateOpen`)
	assert.Contains(t, states, `= "Open"`)
	assert.Contains(t, states, `HeloStateGreeted`)
	assert.Contains(t, states, `= "Greeted"`)
	assert.Contains(t, states, `HeloStateClosed`)
	assert.Contains(t, states, `= "Closed"`)

	table := string(files["handlertable.go"])
	assert.Contains(t, table, "func NewHeloServerTable() handler.Table")
	assert.Contains(t, table, `t["Open"]["HELO"] = nil`)
	assert.NotContains(t, table, `t["Greeted"]`)
}

func TestGenerator_ProducesValidGoSyntax(t *testing.T) {
	gen := codegen.New("heloproto", heloProtocol())
	files, err := gen.Generate()
	require.NoError(t, err)

	for name, content := range files {
		assert.NotContains(t, string(content), "<no value>", "template left a hole in %s", name)
	}
}

func TestBuildManifest_ListsGeneratedFiles(t *testing.T) {
	gen := codegen.New("heloproto", heloProtocol())
	files, err := gen.Generate()
	require.NoError(t, err)

	m := codegen.BuildManifest("heloproto", "heloproto", files)
	assert.Equal(t, "heloproto", m.Library)
	assert.ElementsMatch(t, []string{"messages.go", "states.go", "handlertable.go"}, m.Files)

	data, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"library": "heloproto"`)
}
