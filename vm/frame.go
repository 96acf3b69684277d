// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

import (
	"bytes"
	"strconv"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/optree"
)

// Frame is one level of a Continuation's execution stack, the Go analogue
// of executionstackframe.cpp's ExecutionStackFrame: a node plus the
// accumulated results of the children it has run so far. Control-flow
// opcodes with a fixed arity (Sequence, WriteOctets, ...) use acc's length
// against len(node.Children) to decide readiness, exactly like the
// original's operation_has_arguments_ready. OpGenerateList and
// OpFunctionCallForEach are dynamic-arity: loopIdx/loopDone track how many
// synthetic iterations have run beyond the node's declared Children.
type Frame struct {
	node *optree.Node
	acc  []Value

	loopIdx  int
	loopDone bool

	// ioProgress is read/write scratch for the opcodes that may need more
	// than one Step call to finish matching (literal or terminator scan),
	// the same cross-call stage counter wire.actionState keeps.
	ioProgress ioProgress
}

type ioProgress struct {
	literalMatched int
	scanBuf        []byte
}

func newFrame(n *optree.Node) *Frame { return &Frame{node: n} }

// nextChild returns the next child node this frame needs evaluated before
// it can execute, or (nil, true) if it is ready now.
func (f *Frame) nextChild() (*optree.Node, bool) {
	switch f.node.Op {
	case optree.OpStaticCallable:
		// Body is raw data, not an argument: StaticCallable never evaluates
		// its child, it only wraps it into a Callable value.
		return nil, true

	case optree.OpGenerateList:
		if len(f.acc) == 0 {
			return f.node.Children[0], false
		}
		return nil, f.loopDone

	case optree.OpFunctionCallForEach:
		if len(f.acc) < 2 {
			return f.node.Children[len(f.acc)], false
		}
		return nil, f.loopDone

	default:
		if len(f.acc) < len(f.node.Children) {
			return f.node.Children[len(f.acc)], false
		}
		return nil, true
	}
}

// execute runs this frame's own opcode now that nextChild reports ready. It
// may instead report blocked (insufficient input to finish an I/O opcode);
// the caller must leave the frame on the stack and retry after more input
// arrives.
func (f *Frame) execute(c *Continuation) (Value, BlockReason, error) {
	n := f.node
	switch n.Op {
	case optree.OpSequence:
		if len(f.acc) == 0 {
			return Value{}, NoBlock, nil
		}
		// A VControlStop produced by an earlier sibling (TerminateListIfReadAhead
		// inside a read Loop's body, which never sits last in the sequence)
		// must survive to the Sequence's own result — GenerateList only ever
		// looks at the Sequence's return value, never reaches into its
		// children, so a later sibling silently overwriting the stop marker
		// would hide loop termination from GenerateList entirely. The stop
		// carries the Sequence's last value in List (in a read Loop's body,
		// the element read in this same invocation) so GenerateList keeps it.
		for _, v := range f.acc {
			if v.Kind == VControlStop {
				stop := Value{Kind: VControlStop}
				if last := f.acc[len(f.acc)-1]; last.Kind != VControlStop {
					stop.List = []Value{last}
				}
				return stop, NoBlock, nil
			}
		}
		return f.acc[len(f.acc)-1], NoBlock, nil

	case optree.OpInt32Literal:
		return Int32(n.Int32), NoBlock, nil

	case optree.OpStaticCallable:
		return Value{Kind: VCallable, Callable: &Callable{Body: n.Children[0], Params: paramsOf(n.Name)}}, NoBlock, nil

	case optree.OpLexicalPadInitialize:
		return c.pad.Initialize(n.Name, f.acc[0]), NoBlock, nil

	case optree.OpLexicalPadGet:
		v, ok := c.pad.Get(n.Name)
		if !ok {
			return ErrValue(NameError, "lexical pad: "+n.Name+" not initialized"), NoBlock, nil
		}
		return v, NoBlock, nil

	case optree.OpLexicalPadSet:
		return c.pad.Set(n.Name, f.acc[0]), NoBlock, nil

	case optree.OpLexicalPadAsDict:
		return DictValue(c.pad.AsDict()), NoBlock, nil

	case optree.OpDictionaryInitialize:
		return DictValue(NewDict()), NoBlock, nil

	case optree.OpReadStaticOctets:
		return f.readStatic(c, n.Literal)

	case optree.OpWriteStaticOctets:
		c.io.out = append(c.io.out, n.Literal...)
		return Octets(n.Literal), NoBlock, nil

	case optree.OpReadOctetsUntilTerminator:
		return f.readUntilTerminator(c, n.Terminator, n.Escape)

	case optree.OpWriteOctets:
		v := f.acc[0]
		c.io.out = append(c.io.out, v.Octets...)
		return v, NoBlock, nil

	case optree.OpTerminateListIfReadAhead:
		return f.terminateListIfReadAhead(c, n.Terminator)

	case optree.OpIntToAscii:
		return Octets([]byte(strconv.FormatInt(int64(f.acc[0].Int32), 10))), NoBlock, nil

	case optree.OpReadIntFromAscii:
		raw := f.acc[0].Octets
		bits := n.FieldType.Bits
		if bits == 0 {
			bits = 32
		}
		parsed, err := strconv.ParseInt(string(raw), 10, bits)
		if err != nil {
			return ErrValue(ProtocolMismatch, "not a valid base-10 integer: "+string(raw)), NoBlock, nil
		}
		if n.FieldType.Unsigned && parsed < 0 {
			return ErrValue(ProtocolMismatch, "negative value for unsigned field: "+string(raw)), NoBlock, nil
		}
		return Int32(int32(parsed)), NoBlock, nil

	case optree.OpEscapeReplace:
		return Octets(bytes.ReplaceAll(f.acc[0].Octets, n.Escape.Character, n.Escape.Sequence)), NoBlock, nil

	case optree.OpEscapeUnreplace:
		return Octets(bytes.ReplaceAll(f.acc[0].Octets, n.Escape.Sequence, n.Escape.Character)), NoBlock, nil

	case optree.OpGenerateList:
		elems := append([]Value{}, f.acc[1:len(f.acc)-1]...)
		elems = append(elems, f.acc[len(f.acc)-1].List...)
		return List(elems), NoBlock, nil

	case optree.OpFunctionCallForEach:
		return f.acc[1], NoBlock, nil

	case optree.OpUnaryCallback:
		if c.callbackResponse != nil {
			v := *c.callbackResponse
			c.callbackResponse = nil
			return v, NoBlock, nil
		}
		if c.pendingCallbackKey == "" {
			c.pendingCallbackKey = n.Name
			c.pendingCallbackArgs = f.acc
		}
		return Value{}, WaitingForCallback, nil

	default:
		return ErrValue(TypeError, "unimplemented opcode "+n.Op.String()), NoBlock, nil
	}
}

func paramsOf(name string) []string {
	if name == "" {
		return nil
	}
	return []string{name}
}

// readStatic matches a literal against the continuation's input buffer,
// persisting partial-match progress across Step calls the way
// wire.MessageParser.matchStatic does.
func (f *Frame) readStatic(c *Continuation, literal []byte) (Value, BlockReason, error) {
	remaining := literal[f.ioProgress.literalMatched:]
	in := c.io.in
	if len(in) < len(remaining) {
		if !bytes.Equal(in, remaining[:len(in)]) {
			return ErrValue(ProtocolMismatch, "literal mismatch"), NoBlock, nil
		}
		f.ioProgress.literalMatched += len(in)
		c.io.consume(len(in))
		return Value{}, WaitingForRead, nil
	}
	if !bytes.Equal(in[:len(remaining)], remaining) {
		return ErrValue(ProtocolMismatch, "literal mismatch"), NoBlock, nil
	}
	c.io.consume(len(remaining))
	return Octets(literal), NoBlock, nil
}

func (f *Frame) readUntilTerminator(c *Continuation, terminator []byte, esc *ast.Escape) (Value, BlockReason, error) {
	combined := append(f.ioProgress.scanBuf, c.io.in...)
	idx := findTerminator(combined, terminator, esc)
	if idx < 0 {
		f.ioProgress.scanBuf = combined
		c.io.consume(len(c.io.in))
		return Value{}, WaitingForRead, nil
	}
	consumed := idx + len(terminator) - len(f.ioProgress.scanBuf)
	if consumed < 0 {
		consumed = 0
	}
	c.io.consume(consumed)
	f.ioProgress.scanBuf = nil
	return Octets(combined[:idx]), NoBlock, nil
}

// findTerminator mirrors wire.findTerminator exactly: an escape Sequence
// that happens to begin with the terminator itself (HTTP header folding's
// "\n" -> "\r\n ") must not be mistaken for the real end of field.
func findTerminator(buf, terminator []byte, esc *ast.Escape) int {
	overlaps := esc != nil && len(esc.Sequence) > 0 && bytes.HasPrefix(esc.Sequence, terminator)
	search := 0
	for {
		rel := bytes.Index(buf[search:], terminator)
		if rel < 0 {
			return -1
		}
		idx := search + rel
		if !overlaps {
			return idx
		}
		end := idx + len(esc.Sequence)
		if end > len(buf) {
			return -1
		}
		if bytes.Equal(buf[idx:end], esc.Sequence) {
			search = end
			continue
		}
		return idx
	}
}

// terminateListIfReadAhead peeks for terminator without fully consuming
// ambiguity: a short read that could still become the terminator blocks for
// more input rather than guessing (mirrors wire.peekTerminator, including
// peekTerminator's empty-input case: bytes.Equal(nil, term[:0]) is
// vacuously true, so zero bytes buffered is ambiguous, not a mismatch).
func (f *Frame) terminateListIfReadAhead(c *Continuation, terminator []byte) (Value, BlockReason, error) {
	in := c.io.in
	if len(in) >= len(terminator) {
		if bytes.Equal(in[:len(terminator)], terminator) {
			c.io.consume(len(terminator))
			return Value{Kind: VControlStop}, NoBlock, nil
		}
		return Bool(false), NoBlock, nil
	}
	if bytes.Equal(in, terminator[:len(in)]) {
		return Value{}, WaitingForRead, nil
	}
	return Bool(false), NoBlock, nil
}
