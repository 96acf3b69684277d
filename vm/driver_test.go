// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/netproto/optree"
	"code.hybscloud.com/netproto/vm"
)

func TestDriver_DrivesSessionOverPipeTransport(t *testing.T) {
	root := &optree.Node{Op: optree.OpSequence, Children: []*optree.Node{
		{Op: optree.OpReadStaticOctets, Literal: []byte("HELLO")},
		{Op: optree.OpWriteStaticOctets, Literal: []byte("HI")},
	}}
	s := vm.NewSession(root, vm.NewPad())

	collection := vm.NewCollection()
	collection.Add(s)

	a, b := net.Pipe()
	transport := vm.NewTransport(a, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := vm.NewDriver(collection)
	go func() { _ = driver.Run(ctx) }()

	go func() {
		_, _ = b.Write([]byte("HELLO"))
	}()

	go func() {
		for i := 0; i < 50; i++ {
			if err := transport.PumpRead(s); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		for i := 0; i < 50; i++ {
			if err := transport.PumpWrite(s); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	buf := make([]byte, 2)
	_ = b.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "HI", string(buf[:n]))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never exited")
	}
	assert.Equal(t, "HI", string(s.Result().Octets))
}

// TestDriver_PumpWriteWaitDrainsWithoutPolling exercises the blocking write
// pump (PumpWriteWait) and the driver's fan-in idle wait (waitForWork)
// together: a single PumpWriteWait call, with no retry loop around it, must
// still see the reply once the driver produces it.
func TestDriver_PumpWriteWaitDrainsWithoutPolling(t *testing.T) {
	root := &optree.Node{Op: optree.OpSequence, Children: []*optree.Node{
		{Op: optree.OpReadStaticOctets, Literal: []byte("HELLO")},
		{Op: optree.OpWriteStaticOctets, Literal: []byte("HI")},
	}}
	s := vm.NewSession(root, vm.NewPad())

	collection := vm.NewCollection()
	collection.Add(s)

	a, b := net.Pipe()
	transport := vm.NewTransport(a, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := vm.NewDriver(collection)
	go func() { _ = driver.Run(ctx) }()

	go func() { _, _ = b.Write([]byte("HELLO")) }()
	go func() { _ = transport.PumpRead(s) }()

	writeErr := make(chan error, 1)
	go func() { writeErr <- transport.PumpWriteWait(s) }()

	buf := make([]byte, 2)
	_ = b.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "HI", string(buf[:n]))

	select {
	case err := <-writeErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("PumpWriteWait never returned after session exit")
	}
}

func TestDriver_CallbackRoundTrip(t *testing.T) {
	root := &optree.Node{Op: optree.OpUnaryCallback, Name: "greet", Children: []*optree.Node{
		{Op: optree.OpLexicalPadGet, Name: "name"},
	}}
	pad := vm.NewPad()
	pad.Initialize("name", vm.Octets([]byte("world")))
	s := vm.NewSession(root, pad)

	collection := vm.NewCollection()
	collection.Add(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := vm.NewDriver(collection, vm.WithCallback("greet", func(args []vm.Value) vm.Value {
		return vm.Octets(append([]byte("hello "), args[0].Octets...))
	}))
	go func() { _ = driver.Run(ctx) }()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never exited")
	}
	assert.Equal(t, "hello world", string(s.Result().Octets))
}
