// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"sync"

	"github.com/google/uuid"

	"code.hybscloud.com/netproto/optree"
)

// Session is one interpreted connection's full per-continuation state (spec
// §5: "owns its input buffer, output buffer, callback request queue,
// callback response queue, EOF flag, and exited flag"), the Go analogue of
// InterpreterContext. ID lets the interpreter collection manager key a
// versioned snapshot map without reusing an index across restarts.
type Session struct {
	ID uuid.UUID

	continuation *Continuation
	Input        *ByteQueue
	Output       *ByteQueue
	Callbacks    *CallbackQueue

	mu     sync.Mutex
	eof    bool
	exited bool
	result Value

	done chan struct{}
}

// NewSession starts a fresh continuation over root sharing pad, ready to be
// driven by a Driver.
func NewSession(root *optree.Node, pad *Pad) *Session {
	return &Session{
		ID:           uuid.New(),
		continuation: NewContinuation(root, pad, NewIOContext()),
		Input:        NewByteQueue(),
		Output:       NewByteQueue(),
		Callbacks:    NewCallbackQueue(),
		done:         make(chan struct{}),
	}
}

// OnEOF forwards end-of-stream, waking every queue a blocked opcode might be
// waiting on.
func (s *Session) OnEOF() {
	s.mu.Lock()
	s.eof = true
	s.mu.Unlock()
	s.Input.Notify()
	s.Output.Notify()
	s.Callbacks.Notify()
}

func (s *Session) isEOF() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eof
}

// Exited reports whether this session's continuation has run to completion.
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

func (s *Session) finish(v Value) {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.exited = true
	s.result = v
	s.mu.Unlock()
	close(s.done)
	// Wake anything still blocked in a queue Wait call on this session's
	// behalf (a PumpWriteWait draining the last bytes, a driver fan-in
	// goroutine from waitForWork) — nothing will ever push again.
	s.Input.Notify()
	s.Output.Notify()
	s.Callbacks.Notify()
}

// Done reports when the continuation has exited (completed or errored).
func (s *Session) Done() <-chan struct{} { return s.done }

// Result blocks until Done is closed and returns the continuation's final
// Value — a VError Value on failure, per spec §4.6.
func (s *Session) Result() Value {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
