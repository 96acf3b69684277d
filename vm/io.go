// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

// IOContext is a Continuation's per-connection transport buffers (spec §5
// "Interpreter's per-connection context owns its input buffer, output
// buffer..."). Feed bytes in with PushInput; drain pending writes with
// TakeOutput. Both are plain byte queues — the driver (driver.go) moves bytes
// between these and a Session's Input/Output queues, and Transport
// (iopump.go) moves them between those queues and a real transport.
type IOContext struct {
	in  []byte
	out []byte
}

func NewIOContext() *IOContext { return &IOContext{} }

// PushInput appends bytes the transport has read, to be consumed by
// Read-family opcodes on the next Step.
func (c *IOContext) PushInput(b []byte) { c.in = append(c.in, b...) }

// TakeOutput drains and returns everything Write-family opcodes have
// produced since the last call.
func (c *IOContext) TakeOutput() []byte {
	out := c.out
	c.out = nil
	return out
}

func (c *IOContext) consume(n int) {
	c.in = c.in[n:]
}
