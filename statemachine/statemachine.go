// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package statemachine is the per-agent runtime core the generated library
// wraps with type-safe, per-protocol method names (spec §4.3). One Machine
// tracks current_state, drives lookahead dispatch across a state's read
// transitions, and pumps write transitions into an output buffer — the
// same two-phase, stage-counter shape as hayabusa-cloud-framer's Forwarder
// (forward.go), generalized from "parse a length header, forward the
// payload" to "discriminate among several parsers, commit to one, forward
// its MessageData".
package statemachine

import (
	"fmt"

	"code.hybscloud.com/netproto/ir"
	"code.hybscloud.com/netproto/wire"
)

// pendingMessage is one parsed-and-not-yet-taken message, keyed by the
// target state its transition moved current_state to (spec: "at most one
// typed message per target-state slot").
type pendingMessage struct {
	messageName string
	data        wire.MessageData
}

// Machine is one agent's (client or server) protocol runtime instance.
type Machine struct {
	transitions map[string]map[string]*ir.Transition // state -> message name -> transition
	order       map[string][]string                  // state -> message declaration order
	discs       map[string][]ir.Discriminator         // state -> precomputed lookahead discriminators

	current string

	// active is the message name lookahead dispatch has committed to for
	// the in-flight read, or "" while more than one transition is still
	// possible.
	active string

	parsers      map[string]*wire.MessageParser
	serializers  map[string]*wire.MessageSerializer
	pending      map[string]pendingMessage
	pendingOrder []string

	out []byte

	eof    bool
	closed bool
}

// New builds a Machine starting in ast.OpenState.
func New(transitions map[string]map[string]*ir.Transition, order map[string][]string) *Machine {
	m := &Machine{
		transitions: transitions,
		order:       order,
		discs:       map[string][]ir.Discriminator{},
		current:     "Open",
		parsers:     map[string]*wire.MessageParser{},
		serializers: map[string]*wire.MessageSerializer{},
		pending:     map[string]pendingMessage{},
	}
	for state, msgs := range transitions {
		for name, t := range msgs {
			m.parsers[name] = wire.NewMessageParser(t)
			m.serializers[name] = wire.NewMessageSerializer(t)
		}
		m.discs[state] = ir.Discriminate(msgs, order[state])
	}
	return m
}

// CurrentState reports current_state.
func (m *Machine) CurrentState() string { return m.current }

// IsClosed reports current_state == Closed.
func (m *Machine) IsClosed() bool { return m.closed }

// OnEOF forwards end-of-stream to whatever lookahead probe or committed
// parser is in flight.
func (m *Machine) OnEOF() { m.eof = true }

// OnBytesReceived feeds input into the current state's read dispatch (spec
// §4.3 "Read dispatch"). Once a transition is committed, consumed follows
// the parser's own never-resend accounting (wire.MessageParser); while
// dispatch is still ambiguous, it returns consumed=0 and the caller must
// re-offer the same bytes, grown with whatever arrives next, until
// discrimination resolves — spec §4.3: "if any condition is still ambiguous
// it returns NeedMoreData (consumed=0) and awaits more bytes."
func (m *Machine) OnBytesReceived(input []byte) (consumed int, err error) {
	msgs := m.transitions[m.current]
	if len(msgs) == 0 {
		return 0, fmt.Errorf("%w: state %q has no read transitions", wire.ErrProtocolMismatch, m.current)
	}

	if m.active == "" {
		discs := m.discs[m.current]
		name, ok, wait := ir.Decide(discs, input, m.eof)
		switch {
		case ok:
			m.active = name
		case wait:
			return 0, nil
		default:
			return 0, fmt.Errorf("%w: no read transition matches in state %q", wire.ErrProtocolMismatch, m.current)
		}
	}

	t := msgs[m.active]
	p := m.parsers[m.active]
	status, n, perr := p.Parse(input)
	if perr != nil {
		return n, perr
	}
	if status == wire.NeedMoreData {
		if m.eof {
			return n, fmt.Errorf("%w: state %q mid-transition %q", wire.ErrTruncated, m.current, m.active)
		}
		return n, nil
	}

	data := p.TakeData()
	m.resetOtherParsers(msgs, m.active)
	m.pending[t.TargetState] = pendingMessage{messageName: t.MessageName, data: data}
	m.pendingOrder = append(m.pendingOrder, t.TargetState)
	m.current = t.TargetState
	m.active = ""
	if m.current == "Closed" {
		m.closed = true
	}
	return n, nil
}

func (m *Machine) resetOtherParsers(msgs map[string]*ir.Transition, committed string) {
	for name := range msgs {
		if name != committed {
			m.parsers[name].Reset()
		}
	}
}

// HasMessage reports whether any target-state slot holds an unread message.
func (m *Machine) HasMessage() bool { return len(m.pendingOrder) > 0 }

// MessageState returns the target state of the oldest unread message, or ""
// if none is pending.
func (m *Machine) MessageState() string {
	if len(m.pendingOrder) == 0 {
		return ""
	}
	return m.pendingOrder[0]
}

// TakeMessage removes and returns the pending message for targetState.
func (m *Machine) TakeMessage(targetState string) (messageName string, data wire.MessageData, ok bool) {
	p, found := m.pending[targetState]
	if !found {
		return "", nil, false
	}
	delete(m.pending, targetState)
	for i, s := range m.pendingOrder {
		if s == targetState {
			m.pendingOrder = append(m.pendingOrder[:i], m.pendingOrder[i+1:]...)
			break
		}
	}
	return p.messageName, p.data, true
}

// SendMessage runs messageName's serializer to completion over data,
// appending every produced chunk to the output buffer, then transitions
// current_state to the message's target state (spec §4.3 "Write dispatch").
// No check is performed that messageName is valid from current_state — the
// generated per-protocol wrapper only exposes the methods that are.
func (m *Machine) SendMessage(messageName string, data wire.MessageData) error {
	s, ok := m.serializers[messageName]
	if !ok {
		return fmt.Errorf("statemachine: unknown message %q", messageName)
	}
	var target string
	for _, msgs := range m.transitions {
		if t, ok := msgs[messageName]; ok {
			target = t.TargetState
			break
		}
	}
	s.Reset()
	s.SetData(data)
	for {
		chunk, err := s.NextChunk()
		if err != nil {
			return err
		}
		if chunk == nil {
			break
		}
		m.out = append(m.out, chunk...)
		s.Advance()
	}
	m.current = target
	if m.current == "Closed" {
		m.closed = true
	}
	return nil
}

// PendingOutput returns bytes queued for the transport.
func (m *Machine) PendingOutput() []byte { return m.out }

// BytesWritten removes the leading n bytes of PendingOutput after the
// caller has flushed them to the transport.
func (m *Machine) BytesWritten(n int) {
	m.out = m.out[n:]
}
