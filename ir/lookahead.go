// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ir

import "bytes"

// ConditionKind tags the lookahead discriminator condition extracted from a
// read transition's first action (spec §4.3). Grounded directly on
// original_source/src/networkprotocoldsl/operation/transitionlookahead.cpp's
// three condition variants: EOFCondition, MatchUntilTerminator, static
// string.
type ConditionKind uint8

const (
	StaticPrefix ConditionKind = iota
	MatchUntilTerminator
	EOFCondition
)

// Condition is one transition's discriminator.
type Condition struct {
	Kind       ConditionKind
	Literal    []byte // StaticPrefix
	Terminator []byte // MatchUntilTerminator
}

// Discriminator pairs a transition's target state with its lookahead
// Condition.
type Discriminator struct {
	MessageName string
	TargetState string
	Condition   Condition
}

// Discriminate extracts the lookahead condition for every read transition
// of a state (spec §4.3's per-condition list). Loop defers to its first
// inner action, matching spec's "Loop(...) uses the loop's first inner
// action's condition".
func Discriminate(transitions map[string]*Transition, order []string) []Discriminator {
	out := make([]Discriminator, 0, len(order))
	for _, name := range order {
		t := transitions[name]
		out = append(out, Discriminator{
			MessageName: t.MessageName,
			TargetState: t.TargetState,
			Condition:   conditionFor(t.Actions, t.TargetState),
		})
	}
	return out
}

func conditionFor(actions []Action, targetState string) Condition {
	if len(actions) == 0 {
		return Condition{Kind: EOFCondition}
	}
	first := actions[0]
	switch first.Kind {
	case ReadStaticOctets:
		return Condition{Kind: StaticPrefix, Literal: first.Literal}
	case ReadOctetsUntilTerminator:
		return Condition{Kind: MatchUntilTerminator, Terminator: first.Terminator}
	case Loop:
		return conditionFor(first.Inner, targetState)
	default:
		return Condition{Kind: EOFCondition}
	}
}

// MatchResult mirrors TransitionLookahead::match_condition's tri-state: a
// condition is either a confirmed match, a permanent mismatch (this
// condition can never match given what's been seen so far), or inconclusive
// (need more bytes or EOF information before deciding).
type MatchResult struct {
	Matched           bool
	PermanentMismatch bool
}

// Match evaluates one Condition against the bytes seen so far (buf) and
// whether EOF has been observed (eof).
func Match(c Condition, buf []byte, eof bool) MatchResult {
	switch c.Kind {
	case EOFCondition:
		if eof {
			return MatchResult{Matched: true}
		}
		if len(buf) == 0 {
			return MatchResult{}
		}
		return MatchResult{PermanentMismatch: true}

	case MatchUntilTerminator:
		if bytes.Contains(buf, c.Terminator) {
			return MatchResult{Matched: true}
		}
		return MatchResult{PermanentMismatch: eof}

	case StaticPrefix:
		if len(buf) <= len(c.Literal) {
			if !bytes.Equal(buf, c.Literal[:len(buf)]) {
				return MatchResult{PermanentMismatch: true}
			}
			if len(buf) == len(c.Literal) {
				return MatchResult{Matched: true}
			}
			return MatchResult{PermanentMismatch: eof}
		}
		if bytes.Equal(buf[:len(c.Literal)], c.Literal) {
			return MatchResult{Matched: true}
		}
		return MatchResult{PermanentMismatch: true}

	default:
		return MatchResult{PermanentMismatch: true}
	}
}

// Decide runs every discriminator against the current buffer, mirroring
// TransitionLookahead::operator(): returns the matched target message name
// (commit), or ok=false with wait=true if still inconclusive, or ok=false
// with wait=false if every condition is permanently mismatched
// (ProtocolMismatch).
func Decide(discs []Discriminator, buf []byte, eof bool) (messageName string, ok bool, wait bool) {
	allPermanentlyInvalid := true
	for _, d := range discs {
		res := Match(d.Condition, buf, eof)
		if res.Matched {
			return d.MessageName, true, false
		}
		if !res.PermanentMismatch {
			allPermanentlyInvalid = false
		}
	}
	if allPermanentlyInvalid {
		return "", false, false
	}
	return "", false, true
}
