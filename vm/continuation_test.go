// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netproto/optree"
	"code.hybscloud.com/netproto/vm"
)

func drive(t *testing.T, c *vm.Continuation) []vm.Value {
	t.Helper()
	var results []vm.Value
	for i := 0; i < 10000; i++ {
		switch c.Step() {
		case vm.Ready:
			results = append(results, c.Result())
		case vm.Blocked:
			t.Fatalf("unexpected block: %v", c.BlockReason())
		case vm.Exited:
			results = append(results, c.Result())
			return results
		}
	}
	t.Fatal("continuation never exited")
	return nil
}

func TestContinuation_LexicalPadInitializeGetSet(t *testing.T) {
	root := &optree.Node{Op: optree.OpSequence, Children: []*optree.Node{
		{Op: optree.OpLexicalPadInitialize, Name: "a", Children: []*optree.Node{
			{Op: optree.OpInt32Literal, Int32: 10},
		}},
		{Op: optree.OpLexicalPadGet, Name: "a"},
		{Op: optree.OpLexicalPadSet, Name: "a", Children: []*optree.Node{
			{Op: optree.OpInt32Literal, Int32: 20},
		}},
		{Op: optree.OpLexicalPadGet, Name: "a"},
	}}
	c := vm.NewContinuation(root, vm.NewPad(), vm.NewIOContext())
	results := drive(t, c)

	want := []int32{10, 10, 10, 20, 10, 20, 20}
	require.Len(t, results, len(want))
	for i, w := range want {
		assert.Equal(t, w, results[i].Int32, "step %d", i)
	}
}

func TestContinuation_LexicalPadGetUnknownIsNameError(t *testing.T) {
	root := &optree.Node{Op: optree.OpLexicalPadGet, Name: "unknown"}
	c := vm.NewContinuation(root, vm.NewPad(), vm.NewIOContext())
	require.Equal(t, vm.Exited, c.Step())
	assert.Equal(t, vm.VError, c.Result().Kind)
	assert.Equal(t, vm.NameError, c.Result().ErrKind)
}

func TestContinuation_ReadStaticOctetsBlocksThenCompletes(t *testing.T) {
	root := &optree.Node{Op: optree.OpReadStaticOctets, Literal: []byte("HELLO")}
	io := vm.NewIOContext()
	c := vm.NewContinuation(root, vm.NewPad(), io)

	io.PushInput([]byte("HEL"))
	assert.Equal(t, vm.Blocked, c.Step())
	assert.Equal(t, vm.WaitingForRead, c.BlockReason())

	io.PushInput([]byte("LO"))
	assert.Equal(t, vm.Exited, c.Step())
	assert.Equal(t, "HELLO", string(c.Result().Octets))
}

func TestContinuation_FunctionCallForEachWritesEveryElement(t *testing.T) {
	// Sequence[ FunctionCallForEach(callable(item){ WriteOctets(pad.get(item)) }, pad.get(items)), WriteStatic("\r\n") ]
	callable := &optree.Node{Op: optree.OpStaticCallable, Name: "item", Children: []*optree.Node{
		{Op: optree.OpWriteOctets, Children: []*optree.Node{
			{Op: optree.OpLexicalPadGet, Name: "item"},
		}},
	}}
	root := &optree.Node{Op: optree.OpSequence, Children: []*optree.Node{
		{Op: optree.OpFunctionCallForEach, Children: []*optree.Node{
			callable,
			{Op: optree.OpLexicalPadGet, Name: "items"},
		}},
		{Op: optree.OpWriteStaticOctets, Literal: []byte("\r\n")},
	}}

	pad := vm.NewPad()
	pad.Initialize("items", vm.List([]vm.Value{vm.Octets([]byte("a")), vm.Octets([]byte("b")), vm.Octets([]byte("c"))}))
	io := vm.NewIOContext()
	c := vm.NewContinuation(root, pad, io)
	drive(t, c)

	assert.Equal(t, "abc\r\n", string(io.TakeOutput()))
}

func TestContinuation_GenerateListStopsOnTerminator(t *testing.T) {
	// GenerateList body reads one octet string until "," and stops at ";".
	body := &optree.Node{Op: optree.OpSequence, Children: []*optree.Node{
		{Op: optree.OpLexicalPadSet, Name: "item", Children: []*optree.Node{
			{Op: optree.OpReadOctetsUntilTerminator, Terminator: []byte(",")},
		}},
		{Op: optree.OpTerminateListIfReadAhead, Terminator: []byte(";")},
		{Op: optree.OpLexicalPadGet, Name: "item"},
	}}
	callable := &optree.Node{Op: optree.OpStaticCallable, Children: []*optree.Node{body}}
	root := &optree.Node{Op: optree.OpLexicalPadSet, Name: "items", Children: []*optree.Node{
		{Op: optree.OpGenerateList, Children: []*optree.Node{callable}},
	}}

	pad := vm.NewPad()
	pad.Initialize("item", vm.Octets(nil))
	pad.Initialize("items", vm.List(nil))
	io := vm.NewIOContext()
	io.PushInput([]byte("a,b,c,;"))
	c := vm.NewContinuation(root, pad, io)
	drive(t, c)

	v, ok := pad.Get("items")
	require.True(t, ok)
	require.Len(t, v.List, 3)
	assert.Equal(t, "a", string(v.List[0].Octets))
	assert.Equal(t, "b", string(v.List[1].Octets))
	assert.Equal(t, "c", string(v.List[2].Octets))
}
