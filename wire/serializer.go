// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"strconv"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/ir"
)

// MessageSerializer emits one transition's write actions as a sequence of
// byte chunks (spec §4.2), mirroring framer's writeStream resumable stage
// counter the same way MessageParser mirrors readStream.
type MessageSerializer struct {
	transition *ir.Transition
	data       MessageData

	stack    []serFrame
	pending  []byte // current unflushed chunk, returned again by NextChunk until Advance
	complete bool
}

type serFrame struct {
	actions []ir.Action
	idx     int

	loopElems []Value
	loopIdx   int
}

// NewMessageSerializer builds a serializer for one lowered write transition.
func NewMessageSerializer(t *ir.Transition) *MessageSerializer {
	s := &MessageSerializer{transition: t}
	s.Reset()
	return s
}

// SetData binds the MessageData this serializer will emit; call before the
// first NextChunk.
func (s *MessageSerializer) SetData(data MessageData) { s.data = data }

// Reset clears all stage state.
func (s *MessageSerializer) Reset() {
	s.stack = []serFrame{{actions: s.transition.Actions}}
	s.pending = nil
	s.complete = false
}

// IsComplete reports whether every action has been emitted and flushed.
func (s *MessageSerializer) IsComplete() bool { return s.complete }

// NextChunk returns the next non-empty byte chunk to write, or nil when
// complete. Repeated calls without an intervening Advance return the same
// chunk (spec §4.2: "may not consume its own output").
func (s *MessageSerializer) NextChunk() ([]byte, error) {
	if s.pending != nil {
		return s.pending, nil
	}
	for {
		if len(s.stack) == 0 {
			s.complete = true
			return nil, nil
		}
		top := &s.stack[len(s.stack)-1]

		if top.idx >= len(top.actions) {
			s.stack = s.stack[:len(s.stack)-1]
			continue
		}

		action := &top.actions[top.idx]
		switch action.Kind {
		case ir.WriteStaticOctets:
			top.idx++
			s.pending = action.Literal
			return s.pending, nil

		case ir.WriteFromIdentifier:
			top.idx++
			octets, err := encodeField(action.FieldType, s.data[action.Field])
			if err != nil {
				return nil, err
			}
			s.pending = applyEscapeOnWrite(octets, action.Escape)
			return s.pending, nil

		case ir.Loop:
			elems := s.data[action.Collection].Array
			if top.loopIdx < len(elems) {
				elemData := MessageData{action.Variable: elems[top.loopIdx]}
				top.loopIdx++
				s.data[action.Variable] = elemData[action.Variable]
				s.stack = append(s.stack, serFrame{actions: action.Inner})
				continue
			}
			top.idx++
			s.pending = action.Terminator
			return s.pending, nil

		default:
			return nil, fmt.Errorf("wire: unsupported write action %v", action.Kind)
		}
	}
}

// Advance marks the last-returned chunk as flushed, advancing the stage.
func (s *MessageSerializer) Advance() {
	s.pending = nil
}

func encodeField(ft ast.Type, v Value) ([]byte, error) {
	switch ft.Kind {
	case ast.TStr:
		return []byte(v.Str), nil
	case ast.TInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	default:
		return nil, fmt.Errorf("wire: cannot encode field of type %s", ft)
	}
}
