// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package handler is the thin dispatch loop generated on top of statemachine
// (spec §4.5): after each on_bytes_received, while has_message, take the
// message, invoke the handler overload matching its variant, and send the
// response it returns. The shape mirrors forward.go's Forwarder — a small
// stateful driver pumping one well-defined cycle per call — generalized from
// "copy one framed payload" to "dispatch one parsed message to its handler".
package handler

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"code.hybscloud.com/netproto/wire"
)

// Request is one parsed message handed to a Func: the target state it moved
// the state machine into, its message name, and its typed field data.
type Request struct {
	State       string
	MessageName string
	Data        wire.MessageData
}

// Response is the message a Func wants sent back, or the zero value if this
// state's handler has nothing to send yet (e.g. still waiting on more
// reads before replying).
type Response struct {
	MessageName string
	Data        wire.MessageData
}

// Func handles one message variant arriving at one state (spec §4.5: "the
// handler surface is polymorphic over the message variant, one method
// overload per message type"). Go has no method overloading, so the
// generated per-protocol table keys one Func per (state, message name)
// instead of relying on overload resolution.
type Func func(ctx context.Context, req Request) (Response, error)

// Table is the generated per-protocol dispatch surface: for every state with
// outgoing read transitions, one Func per message name that can arrive
// there.
type Table map[string]map[string]Func

// InitialWriter supplies the Open state's initial outbound message for
// agents that write first (spec §4.5: "on_Open() returning the initial
// message").
type InitialWriter func(ctx context.Context) (Response, error)

// Machine is the per-connection protocol runtime a Dispatcher drives:
// statemachine.Machine's generated-path shape, exactly as
// vm.Runner reproduces it for the interpreted path, so one Dispatcher/Table
// pair can sit on top of either.
type Machine interface {
	OnBytesReceived(input []byte) (consumed int, err error)
	HasMessage() bool
	MessageState() string
	TakeMessage(targetState string) (messageName string, data wire.MessageData, ok bool)
	SendMessage(messageName string, data wire.MessageData) error
	PendingOutput() []byte
	BytesWritten(n int)
	OnEOF()
	IsClosed() bool
	CurrentState() string
}

// Dispatcher drives one Machine through a Table. It carries only the
// configuration shared across connections (the table, the initial writer);
// per-connection state lives entirely in the wrapped Machine (spec §4.5:
// "the handler carries only configuration shared across connections").
type Dispatcher struct {
	machine Machine
	table   Table
	onOpen  InitialWriter

	started bool
}

// New builds a Dispatcher over an already-constructed Machine (a
// *statemachine.Machine or a *vm.Runner). onOpen may be nil for agents that
// never write first.
func New(m Machine, table Table, onOpen InitialWriter) *Dispatcher {
	return &Dispatcher{machine: m, table: table, onOpen: onOpen}
}

// Start runs the Open-state initial write, if this agent has one. Safe to
// call once before the first OnBytesReceived; a no-op on agents with no
// InitialWriter and a no-op on repeat calls.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.started || d.onOpen == nil {
		d.started = true
		return nil
	}
	d.started = true
	resp, err := d.onOpen(ctx)
	if err != nil {
		return errors.Wrap(err, "handler: initial write")
	}
	if resp.MessageName == "" {
		return nil
	}
	return d.send(resp)
}

// OnBytesReceived feeds input into the state machine, then drains every
// message it produced through the matching handler, sending each handler's
// response before looking for the next pending message — the thin loop
// spec §4.5 describes.
func (d *Dispatcher) OnBytesReceived(ctx context.Context, input []byte) (consumed int, err error) {
	consumed, err = d.machine.OnBytesReceived(input)
	if err != nil {
		return consumed, err
	}
	for d.machine.HasMessage() {
		state := d.machine.MessageState()
		name, data, ok := d.machine.TakeMessage(state)
		if !ok {
			break
		}
		fn, err := d.lookup(state, name)
		if err != nil {
			return consumed, err
		}
		resp, err := fn(ctx, Request{State: state, MessageName: name, Data: data})
		if err != nil {
			return consumed, errors.Wrapf(err, "handler: state %q message %q", state, name)
		}
		if resp.MessageName == "" {
			continue
		}
		if err := d.send(resp); err != nil {
			return consumed, err
		}
	}
	return consumed, nil
}

func (d *Dispatcher) lookup(state, name string) (Func, error) {
	handlers, ok := d.table[state]
	if !ok {
		return nil, fmt.Errorf("handler: no handlers registered for state %q", state)
	}
	fn, ok := handlers[name]
	if !ok {
		return nil, fmt.Errorf("handler: state %q has no handler for message %q", state, name)
	}
	return fn, nil
}

func (d *Dispatcher) send(resp Response) error {
	return d.machine.SendMessage(resp.MessageName, resp.Data)
}

// PendingOutput returns bytes queued for the transport.
func (d *Dispatcher) PendingOutput() []byte { return d.machine.PendingOutput() }

// BytesWritten removes the leading n bytes of PendingOutput after the
// caller has flushed them to the transport.
func (d *Dispatcher) BytesWritten(n int) { d.machine.BytesWritten(n) }

// OnEOF forwards end-of-stream to the wrapped Machine.
func (d *Dispatcher) OnEOF() { d.machine.OnEOF() }

// IsClosed reports whether the wrapped Machine has reached Closed.
func (d *Dispatcher) IsClosed() bool { return d.machine.IsClosed() }

// CurrentState reports the wrapped Machine's current state.
func (d *Dispatcher) CurrentState() string { return d.machine.CurrentState() }
