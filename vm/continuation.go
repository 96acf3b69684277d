// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import "code.hybscloud.com/netproto/optree"

// State is step()'s three-way result (spec §4.4).
type State uint8

const (
	Ready State = iota
	Blocked
	Exited
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Blocked:
		return "Blocked"
	case Exited:
		return "Exited"
	default:
		return "?"
	}
}

// BlockReason is why step() returned Blocked.
type BlockReason uint8

const (
	NoBlock BlockReason = iota
	WaitingForRead
	WaitingForWrite
	WaitingForCallback
)

// Continuation owns one operation tree's execution stack (spec §4.4). It is
// single-threaded by design — the driver (driver.go) is the only caller of
// Step, exactly as continuation.cpp's Continuation is the VM-driver
// thread's sole interface onto the stack.
type Continuation struct {
	stack []*Frame
	pad   *Pad
	io    *IOContext

	result Value
	reason BlockReason

	pendingCallbackKey  string
	pendingCallbackArgs []Value
	callbackDispatched  bool
	callbackResponse    *Value
}

// DeliverCallback hands a host callback's result back to whatever frame is
// waiting on it, so the next Step resolves the blocked OpUnaryCallback
// instead of re-requesting it.
func (c *Continuation) DeliverCallback(v Value) {
	c.callbackResponse = &v
	c.pendingCallbackKey = ""
	c.pendingCallbackArgs = nil
	c.callbackDispatched = false
}

// PendingCallback returns the key and arguments of the currently
// outstanding callback request and whether it has already been handed to
// the callback thread once this Step cycle.
func (c *Continuation) PendingCallback() (key string, args []Value, dispatched, ok bool) {
	if c.pendingCallbackKey == "" {
		return "", nil, false, false
	}
	return c.pendingCallbackKey, c.pendingCallbackArgs, c.callbackDispatched, true
}

// MarkCallbackDispatched records that the callback thread has been handed
// this request, so the driver doesn't re-enqueue it on every Step.
func (c *Continuation) MarkCallbackDispatched() { c.callbackDispatched = true }

// NewContinuation starts a fresh execution over root, sharing pad and io
// with any sibling continuation invoked for the same connection (read and
// write transitions of one protocol instance keep one Pad each; io is
// shared because both directions share one transport buffer pair).
func NewContinuation(root *optree.Node, pad *Pad, io *IOContext) *Continuation {
	return &Continuation{stack: []*Frame{newFrame(root)}, pad: pad, io: io}
}

// Result returns the value produced by the most recently completed frame —
// on Ready, that frame's own result; on Exited, the whole tree's result.
func (c *Continuation) Result() Value { return c.result }

// BlockReason returns why the last Step returned Blocked.
func (c *Continuation) BlockReason() BlockReason { return c.reason }

// Step runs until exactly one frame completes, matching continuation.cpp's
// step(): descend (push) until a frame is ready, execute it, pop it, and
// hand its value to whatever frame is now on top — or report Exited if the
// stack just emptied.
func (c *Continuation) Step() State {
	if len(c.stack) == 0 {
		return Exited
	}

	for {
		top := c.stack[len(c.stack)-1]

		if done, advanced := c.stepLoopOpcode(top); advanced {
			if done {
				break
			}
			continue
		}

		child, ready := top.nextChild()
		if ready {
			break
		}
		c.stack = append(c.stack, newFrame(child))
	}

	top := c.stack[len(c.stack)-1]
	v, reason, err := top.execute(c)
	if err != nil {
		v = ErrValue(TypeError, err.Error())
	}
	if reason != NoBlock {
		c.reason = reason
		return Blocked
	}

	c.stack = c.stack[:len(c.stack)-1]
	c.result = v
	if len(c.stack) == 0 {
		return Exited
	}
	c.stack[len(c.stack)-1].acc = append(c.stack[len(c.stack)-1].acc, v)
	return Ready
}

// stepLoopOpcode drives the one synthetic iteration GenerateList and
// FunctionCallForEach need beyond their declared Children, binding the loop
// parameter in pad before pushing the callable's body. advanced reports
// whether it did anything this call; done reports whether the iteration
// phase is now finished (so execute() should run on the next pass).
func (c *Continuation) stepLoopOpcode(top *Frame) (done, advanced bool) {
	switch top.node.Op {
	case optree.OpGenerateList:
		if len(top.acc) == 0 || top.loopDone {
			return false, false
		}
		if top.acc[len(top.acc)-1].Kind == VControlStop {
			top.loopDone = true
			return true, true
		}
		callable := top.acc[0].Callable
		c.stack = append(c.stack, newFrame(callable.Body))
		return false, true

	case optree.OpFunctionCallForEach:
		if len(top.acc) < 2 {
			return false, false
		}
		collection := top.acc[1].List
		if top.loopIdx >= len(collection) {
			top.loopDone = true
			return true, true
		}
		callable := top.acc[0].Callable
		if len(callable.Params) == 1 {
			c.pad.Initialize(callable.Params[0], collection[top.loopIdx])
		}
		top.loopIdx++
		c.stack = append(c.stack, newFrame(callable.Body))
		return false, true

	default:
		return false, false
	}
}
