// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import "sync"

// ByteQueue is a mutex/condvar-guarded FIFO of byte slices, the Go analogue
// of InterpreterContext's input_buffer and output_buffer (spec §5: "all
// cross-thread access is protected by a mutex with a condition-variable
// wake-up"). Pop never blocks; callers that need to wait use Wait or WaitWhileEmpty,
// the same split interpreterrunner.cpp's pop()/push_front() makes between
// non-blocking access and the separate wake_up_for_* signals.
type ByteQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items [][]byte
}

func NewByteQueue() *ByteQueue {
	q := &ByteQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends b and wakes any waiter.
func (q *ByteQueue) Push(b []byte) {
	q.mu.Lock()
	q.items = append(q.items, b)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// PushFront re-queues unconsumed bytes ahead of anything already pending —
// interpreterrunner.cpp's handle_read pushes back whatever a short or joined
// read didn't consume rather than dropping it.
func (q *ByteQueue) PushFront(b []byte) {
	if len(b) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append([][]byte{b}, q.items...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pop removes and returns the oldest chunk, or ok=false if empty.
func (q *ByteQueue) Pop() (b []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	b, q.items = q.items[0], q.items[1:]
	return b, true
}

// Wait blocks until Push/PushFront/Notify wakes it. Callers re-check Pop
// themselves after waking, matching the original's "notify, then re-check"
// shape.
func (q *ByteQueue) Wait() {
	q.mu.Lock()
	q.cond.Wait()
	q.mu.Unlock()
}

// WaitWhileEmpty blocks only while the queue is empty, folding the
// emptiness check and the wait into one critical section. Calling Pop and
// Wait separately leaves a window where a Push lands between the two calls
// and its Broadcast is missed; checking len(items) again under the same
// lock Wait releases closes that window.
func (q *ByteQueue) WaitWhileEmpty() {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Notify wakes any goroutine blocked in Wait without pushing data — used to
// propagate EOF or shutdown.
func (q *ByteQueue) Notify() { q.cond.Broadcast() }

// CallbackRequest names the host function a Callback opcode wants invoked
// and the already-evaluated arguments to call it with.
type CallbackRequest struct {
	Key  string
	Args []Value
}

// CallbackQueue pairs one continuation's outstanding callback request with
// its eventual response. At most one request is ever in flight per
// continuation at a time (spec §5: "FIFO per continuation; callback returns
// are matched to the oldest outstanding request"), so unlike ByteQueue a
// single slot suffices rather than a full FIFO.
//
// Decision (DESIGN.md Open Question 1): a request that is popped but can't
// be serviced — no registered callback for Key, or the driver is shutting
// down — is answered with a synthetic ProtocolMismatch response rather than
// pushed back onto the queue. interpreterrunner.cpp's shutdown path drains
// the queue exactly once per loop iteration and never re-queues.
type CallbackQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	request  *CallbackRequest
	response *Value
}

func NewCallbackQueue() *CallbackQueue {
	q := &CallbackQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushRequest records the pending request, overwriting nothing — callers
// must not invoke this while a request is already outstanding.
func (q *CallbackQueue) PushRequest(r CallbackRequest) {
	q.mu.Lock()
	q.request = &r
	q.mu.Unlock()
	q.cond.Broadcast()
}

// PopRequest removes and returns the outstanding request, if any.
func (q *CallbackQueue) PopRequest() (CallbackRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.request == nil {
		return CallbackRequest{}, false
	}
	r := *q.request
	q.request = nil
	return r, true
}

// PushResponse records the callback's result.
func (q *CallbackQueue) PushResponse(v Value) {
	q.mu.Lock()
	q.response = &v
	q.mu.Unlock()
	q.cond.Broadcast()
}

// PopResponse removes and returns the callback's result, if ready.
func (q *CallbackQueue) PopResponse() (Value, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.response == nil {
		return Value{}, false
	}
	v := *q.response
	q.response = nil
	return v, true
}

func (q *CallbackQueue) Notify() { q.cond.Broadcast() }
