// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire is the sans-I/O byte-level runtime the generated protocol
// library links against: MessageParser and MessageSerializer read and write
// ir.Action lists against caller-supplied byte slices, with no blocking I/O
// and no allocation tied to the read/write path once stage-tracking buffers
// are warm. Directly grounded on
// hayabusa-cloud-framer's internal.go:(*framer).readStream/writeStream — a
// stage-counter (fr.offset/fr.length) that is idempotently resumable across
// partial input, generalized here from "fixed header then length-prefixed
// payload" to "run an arbitrary ir.Action list on every parse() call".
package wire

import (
	"bytes"
	"fmt"
	"strconv"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/ir"
)

// Status is parse()'s three-way result (spec §4.1).
type Status uint8

const (
	NeedMoreData Status = iota
	Complete
	StatusError
)

// Value is a bound field value: int, string, or (for Loop fields) an array
// of element Values. Mirrors the dynamic shape ast.Type describes without
// requiring Go generics over the protocol's own data types.
type Value struct {
	Kind  ast.TypeKind
	Int   int64
	Str   string
	Array []Value
}

// MessageData is a parsed or about-to-be-serialized message, keyed by field
// name exactly as declared in the transition's ast.NamedMessageData.
type MessageData map[string]Value

// actionState is the resumable per-action scratch state that must survive
// across parse() calls when an action's match spans a read boundary: how
// much of a static literal has matched so far, or the not-yet-terminated
// bytes accumulated for a terminator scan.
type actionState struct {
	literalMatched int
	scanBuf        []byte
}

// pcFrame is one level of the parser's action-execution stack. A Loop
// pushes a child frame to run Inner once per element; when that frame
// drains, loopAction/loopElems lets the parent resume the terminator check
// for the next iteration instead of treating the Loop as done.
type pcFrame struct {
	actions []ir.Action
	idx     int

	loopAction *ir.Action
	loopElems  *[]Value
}

// MessageParser runs one transition's read actions against caller-fed byte
// slices (spec §4.1).
type MessageParser struct {
	transition *ir.Transition

	stack   []pcFrame
	fields  MessageData
	states  map[*ir.Action]*actionState
	loopAcc map[*ir.Action]*[]Value

	complete bool
}

// NewMessageParser builds a parser for one lowered read transition.
func NewMessageParser(t *ir.Transition) *MessageParser {
	p := &MessageParser{transition: t}
	p.Reset()
	return p
}

// Reset clears all stage state (spec §4.1 reset()).
func (p *MessageParser) Reset() {
	p.stack = []pcFrame{{actions: p.transition.Actions}}
	p.fields = MessageData{}
	p.states = map[*ir.Action]*actionState{}
	p.loopAcc = map[*ir.Action]*[]Value{}
	p.complete = false
}

// IsComplete reports whether the last Parse call reached the end of the
// action list.
func (p *MessageParser) IsComplete() bool { return p.complete }

// TakeData returns the accumulated MessageData and resets the parser for
// reuse (spec §4.1 take_data()).
func (p *MessageParser) TakeData() MessageData {
	data := p.fields
	p.Reset()
	return data
}

func (p *MessageParser) stateFor(a *ir.Action) *actionState {
	s, ok := p.states[a]
	if !ok {
		s = &actionState{}
		p.states[a] = s
	}
	return s
}

// Parse advances the stage machine using bytes from input, starting at
// offset 0. It returns how many leading bytes of input were consumed; any
// trailing unconsumed bytes belong to the next message and must be
// re-offered by the caller (spec §4.1: "parse(input_slice) → {status,
// consumed}").
func (p *MessageParser) Parse(input []byte) (status Status, consumed int, err error) {
	off := 0
	for {
		if len(p.stack) == 0 {
			p.complete = true
			return Complete, off, nil
		}
		top := &p.stack[len(p.stack)-1]

		if top.idx >= len(top.actions) {
			if top.loopAction != nil {
				*top.loopElems = append(*top.loopElems, p.fields[top.loopAction.Variable])
			}
			p.stack = p.stack[:len(p.stack)-1]
			continue
		}

		action := &top.actions[top.idx]
		switch action.Kind {
		case ir.ReadStaticOctets:
			n, ok, needMore := p.matchStatic(action, input[off:])
			off += n
			if needMore {
				return NeedMoreData, off, nil
			}
			if !ok {
				return StatusError, off, fmt.Errorf("%w: expected literal %q", ErrProtocolMismatch, action.Literal)
			}
			top.idx++

		case ir.ReadOctetsUntilTerminator:
			n, fieldBytes, found := p.matchTerminator(action, input[off:])
			off += n
			if !found {
				return NeedMoreData, off, nil
			}
			value, err := decodeField(action.FieldType, applyEscapeOnRead(fieldBytes, action.Escape))
			if err != nil {
				return StatusError, off, err
			}
			p.fields[action.Field] = value
			delete(p.states, action)
			top.idx++

		case ir.Loop:
			matched, ambiguous, n := peekTerminator(input[off:], action.Terminator)
			if ambiguous {
				return NeedMoreData, off, nil
			}
			if matched {
				off += n
				var elems []Value
				if slot, ok := p.loopAcc[action]; ok {
					elems = *slot
				}
				p.fields[action.Collection] = Value{Kind: ast.TArray, Array: elems}
				delete(p.loopAcc, action)
				top.idx++
				continue
			}
			slot, ok := p.loopAcc[action]
			if !ok {
				slot = new([]Value)
				p.loopAcc[action] = slot
			}
			p.stack = append(p.stack, pcFrame{
				actions:    action.Inner,
				loopAction: action,
				loopElems:  slot,
			})

		default:
			return StatusError, off, fmt.Errorf("wire: unsupported read action %v", action.Kind)
		}
	}
}

// matchStatic compares a literal against input, persisting partial-match
// progress across calls (the direct generalization of framer's
// readStream header-byte stage counter).
func (p *MessageParser) matchStatic(a *ir.Action, input []byte) (consumed int, ok bool, needMore bool) {
	st := p.stateFor(a)
	remaining := a.Literal[st.literalMatched:]
	if len(input) < len(remaining) {
		if !bytes.Equal(input, remaining[:len(input)]) {
			return 0, false, false
		}
		st.literalMatched += len(input)
		return len(input), false, true
	}
	if !bytes.Equal(input[:len(remaining)], remaining) {
		return 0, false, false
	}
	delete(p.states, a)
	return len(remaining), true, false
}

// matchTerminator scans for a.Terminator across however many Parse calls it
// takes, accumulating unterminated bytes in per-action scratch state (spec
// §4.1's ReadOctetsUntilTerminator stage behavior, verbatim).
func (p *MessageParser) matchTerminator(a *ir.Action, input []byte) (consumed int, fieldBytes []byte, found bool) {
	st := p.stateFor(a)
	combined := append(st.scanBuf, input...)
	idx := findTerminator(combined, a.Terminator, a.Escape)
	if idx < 0 {
		st.scanBuf = combined
		return len(input), nil, false
	}
	fieldBytes = combined[:idx]
	consumed = idx + len(a.Terminator) - len(st.scanBuf)
	if consumed < 0 {
		consumed = 0
	}
	st.scanBuf = nil
	return consumed, fieldBytes, true
}

// findTerminator locates the real end-of-field terminator in buf, skipping
// over occurrences that are actually the leading bytes of an escape
// Sequence (an escaped Character whose wire form happens to start with the
// terminator itself, e.g. HTTP header folding's "\n" -> "\r\n "). Returns
// -1 when no unambiguous terminator has appeared yet, the same signal used
// for "need more data" whether that's because nothing matched at all or
// because what matched so far could still turn into an escape sequence.
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
			// Not enough bytes yet to rule out this being an escaped
			// Character rather than the real terminator.
			return -1
		}
		if bytes.Equal(buf[idx:end], esc.Sequence) {
			search = end
			continue
		}
		return idx
	}
}

// peekTerminator reports whether input begins with term (matched), is too
// short to tell yet (ambiguous), or clearly doesn't (neither) — the
// TerminateListIfReadAhead read-ahead check run before each loop element.
func peekTerminator(input, term []byte) (matched, ambiguous bool, consumed int) {
	if len(input) >= len(term) {
		return bytes.Equal(input[:len(term)], term), false, len(term)
	}
	if bytes.Equal(input, term[:len(input)]) {
		return false, true, 0
	}
	return false, false, 0
}

func decodeField(ft ast.Type, raw []byte) (Value, error) {
	switch ft.Kind {
	case ast.TStr:
		return Value{Kind: ast.TStr, Str: string(raw)}, nil
	case ast.TInt:
		n, err := strconv.ParseInt(string(raw), 10, ft.Bits)
		if err != nil {
			return Value{}, fmt.Errorf("%w: field value %q is not a valid base-10 integer: %v", ErrProtocolMismatch, raw, err)
		}
		if ft.Unsigned && n < 0 {
			return Value{}, fmt.Errorf("%w: field value %q is negative for an unsigned field", ErrProtocolMismatch, raw)
		}
		return Value{Kind: ast.TInt, Int: n}, nil
	default:
		return Value{}, fmt.Errorf("wire: cannot decode field of type %s", ft)
	}
}
