// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"fmt"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/ir"
	"code.hybscloud.com/netproto/optree"
	"code.hybscloud.com/netproto/wire"
)

// pendingResult is one parsed-and-not-yet-taken message, keyed by the
// target state its transition moved current_state to — the same
// at-most-one-per-slot bookkeeping statemachine.Machine keeps.
type pendingResult struct {
	messageName string
	data        wire.MessageData
}

// Runner is statemachine.Machine's interpreted-path counterpart: it drives
// one agent's protocol over optree.Transition trees instead of wire's codec
// pair, synchronously, one connection at a time. Where Driver/Session exist
// for concurrently servicing many connections through queues, Runner
// collapses the driving role to a single direct caller — the same
// simplification statemachine.Machine makes relative to a full
// multi-session scheduler — so the interpreted path runs through the same
// per-call shape as the generated path (handler.Machine accepts either).
type Runner struct {
	transitions map[string]map[string]*ir.Transition // state -> message name -> transition
	order       map[string][]string                  // state -> message declaration order
	discs       map[string][]ir.Discriminator         // state -> precomputed lookahead discriminators
	roots       map[string]*optree.Transition         // message name -> built operation tree

	current string
	active  string

	io   *IOContext
	cont *Continuation

	pending      map[string]pendingResult
	pendingOrder []string

	out []byte

	eof    bool
	closed bool
}

// NewRunner builds a Runner starting in ast.OpenState, compiling every
// transition's operation tree up front the way statemachine.New builds
// every parser/serializer up front.
func NewRunner(transitions map[string]map[string]*ir.Transition, order map[string][]string) (*Runner, error) {
	r := &Runner{
		transitions: transitions,
		order:       order,
		discs:       map[string][]ir.Discriminator{},
		roots:       map[string]*optree.Transition{},
		current:     "Open",
		io:          NewIOContext(),
		pending:     map[string]pendingResult{},
	}
	for state, msgs := range transitions {
		for name, t := range msgs {
			root, err := optree.Build(t)
			if err != nil {
				return nil, fmt.Errorf("vm: building transition %q: %w", name, err)
			}
			r.roots[name] = root
		}
		r.discs[state] = ir.Discriminate(msgs, order[state])
	}
	return r, nil
}

// CurrentState reports current_state.
func (r *Runner) CurrentState() string { return r.current }

// IsClosed reports current_state == Closed.
func (r *Runner) IsClosed() bool { return r.closed }

// OnEOF forwards end-of-stream to whatever lookahead probe or committed
// continuation is in flight.
func (r *Runner) OnEOF() { r.eof = true }

// OnBytesReceived feeds input into the current state's read dispatch,
// matching statemachine.Machine.OnBytesReceived's contract exactly: while
// more than one read transition is still possible it returns consumed=0
// and the caller must re-offer the same bytes grown with whatever arrives
// next; once lookahead commits to a message, consumed follows the
// continuation's own never-resend byte accounting.
func (r *Runner) OnBytesReceived(input []byte) (consumed int, err error) {
	msgs := r.transitions[r.current]
	if len(msgs) == 0 {
		return 0, fmt.Errorf("%w: state %q has no read transitions", wire.ErrProtocolMismatch, r.current)
	}

	if r.active == "" {
		discs := r.discs[r.current]
		name, ok, wait := ir.Decide(discs, input, r.eof)
		switch {
		case ok:
			r.active = name
		case wait:
			return 0, nil
		default:
			return 0, fmt.Errorf("%w: no read transition matches in state %q", wire.ErrProtocolMismatch, r.current)
		}
		r.cont = NewContinuation(r.roots[r.active].Root, NewPad(), r.io)
	}

	before := len(r.io.in)
	r.io.PushInput(input)
	state, err := r.step()
	if err != nil {
		return 0, err
	}

	switch state {
	case Blocked:
		// Read opcodes always consume everything they're offered before
		// blocking for more (frame.go's readStatic/readUntilTerminator), so
		// no leftover to account for here.
		if r.eof {
			return before + len(input) - len(r.io.in), fmt.Errorf("%w: state %q mid-transition %q", wire.ErrTruncated, r.current, r.active)
		}
		return before + len(input) - len(r.io.in), nil
	case Exited:
		return r.commit(before + len(input))
	default:
		return before + len(input) - len(r.io.in), nil
	}
}

// step runs the in-flight continuation until it either blocks waiting for
// more input or exits, surfacing any other block reason or VError result as
// a Go error — a committed read transition never issues a callback or a
// write.
func (r *Runner) step() (State, error) {
	for {
		state := r.cont.Step()
		switch state {
		case Ready:
			continue
		case Blocked:
			if r.cont.BlockReason() != WaitingForRead {
				return state, fmt.Errorf("vm: unexpected block reason %v mid read transition %q", r.cont.BlockReason(), r.active)
			}
			return state, nil
		case Exited:
			if res := r.cont.Result(); res.Kind == VError {
				return state, fmt.Errorf("vm: %s: %s", res.ErrKind, res.ErrMsg)
			}
			return state, nil
		}
	}
}

// commit finishes an Exited read transition: snapshots its result into the
// target state's pending slot, resets dispatch for the next message, and
// returns how many of the offered bytes the transition consumed. Any
// leftover is not resent by Runner itself: it is excluded from the returned
// consumed count, so the caller offers it again, and dropped from io's own
// buffer to avoid double counting on the next call.
func (r *Runner) commit(offered int) (int, error) {
	t := r.transitions[r.current][r.active]
	root := r.roots[r.active]

	dict := r.cont.Result().Dict
	var fields []ast.Field
	if t.Data != nil {
		fields = t.Data.Fields
	}
	data := dictToMessageData(dict, fields)

	leftover := len(r.io.in)
	r.io.in = nil

	r.pending[root.TargetState] = pendingResult{messageName: root.MessageName, data: data}
	r.pendingOrder = append(r.pendingOrder, root.TargetState)
	r.current = root.TargetState
	r.active = ""
	r.cont = nil
	if r.current == "Closed" {
		r.closed = true
	}
	return offered - leftover, nil
}

// HasMessage reports whether any target-state slot holds an unread message.
func (r *Runner) HasMessage() bool { return len(r.pendingOrder) > 0 }

// MessageState returns the target state of the oldest unread message, or ""
// if none is pending.
func (r *Runner) MessageState() string {
	if len(r.pendingOrder) == 0 {
		return ""
	}
	return r.pendingOrder[0]
}

// TakeMessage removes and returns the pending message for targetState.
func (r *Runner) TakeMessage(targetState string) (messageName string, data wire.MessageData, ok bool) {
	p, found := r.pending[targetState]
	if !found {
		return "", nil, false
	}
	delete(r.pending, targetState)
	for i, s := range r.pendingOrder {
		if s == targetState {
			r.pendingOrder = append(r.pendingOrder[:i], r.pendingOrder[i+1:]...)
			break
		}
	}
	return p.messageName, p.data, true
}

// SendMessage drives messageName's write transition to completion over
// data, appending everything its continuation wrote to the output buffer,
// then transitions current_state to the message's target state.
func (r *Runner) SendMessage(messageName string, data wire.MessageData) error {
	var t *ir.Transition
	var target string
	for _, msgs := range r.transitions {
		if cand, ok := msgs[messageName]; ok {
			t = cand
			target = cand.TargetState
			break
		}
	}
	if t == nil {
		return fmt.Errorf("vm: unknown message %q", messageName)
	}
	root, ok := r.roots[messageName]
	if !ok {
		return fmt.Errorf("vm: no compiled transition for %q", messageName)
	}

	var fields []ast.Field
	if t.Data != nil {
		fields = t.Data.Fields
	}
	pad := messageDataToPad(data, fields)

	c := NewContinuation(root.Root, pad, r.io)
	for {
		state := c.Step()
		switch state {
		case Ready:
			continue
		case Blocked:
			return fmt.Errorf("vm: write transition %q blocked unexpectedly (%v)", messageName, c.BlockReason())
		case Exited:
			if res := c.Result(); res.Kind == VError {
				return fmt.Errorf("vm: %s: %s", res.ErrKind, res.ErrMsg)
			}
			r.out = append(r.out, r.io.TakeOutput()...)
			r.current = target
			if r.current == "Closed" {
				r.closed = true
			}
			return nil
		}
	}
}

// PendingOutput returns bytes queued for the transport.
func (r *Runner) PendingOutput() []byte { return r.out }

// BytesWritten removes the leading n bytes of PendingOutput after the
// caller has flushed them to the transport.
func (r *Runner) BytesWritten(n int) { r.out = r.out[n:] }
