// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ast

import (
	"bytes"
	"fmt"

	"go.uber.org/multierr"
)

// Validate checks the six invariants of spec §3 and returns every violation
// found, aggregated with multierr, rather than stopping at the first —
// matching §7's "reports DSL semantic errors ... with a line of
// human-readable text per error".
func Validate(p *Protocol) error {
	var err error
	for _, agents := range []struct {
		agent  Agent
		states *AgentStates
	}{{Client, p.Client}, {Server, p.Server}} {
		if agents.states == nil {
			err = multierr.Append(err, fmt.Errorf("%s: no states declared", agents.agent))
			continue
		}
		err = multierr.Append(err, validateAgent(agents.agent, agents.states))
	}
	return err
}

func validateAgent(agent Agent, a *AgentStates) error {
	var err error

	if _, ok := a.State(OpenState); !ok {
		err = multierr.Append(err, fmt.Errorf("%s: missing required state %q", agent, OpenState))
	}
	closed, hasClosed := a.State(ClosedState)
	if !hasClosed {
		err = multierr.Append(err, fmt.Errorf("%s: missing required state %q", agent, ClosedState))
	} else if !closed.IsTerminal() {
		err = multierr.Append(err, fmt.Errorf("%s: state %q must have no outgoing transitions (invariant 3)", agent, ClosedState))
	}

	for _, name := range a.Order {
		s := a.States[name]

		// Invariant 3: only Closed may be terminal.
		if s.IsTerminal() && name != ClosedState {
			err = multierr.Append(err, fmt.Errorf("%s: state %q has no outgoing transitions but is not %q (invariant 3)", agent, name, ClosedState))
		}

		// Invariant 2: direction must not mix within a state.
		var dir Direction
		var reads, writes []string
		for _, msgName := range s.MessageOrder {
			t := s.Transitions[msgName]
			switch t.Kind {
			case Read:
				reads = append(reads, msgName)
			case Write:
				writes = append(writes, msgName)
			default:
				err = multierr.Append(err, fmt.Errorf("%s: state %q transition %q: direction not set", agent, name, msgName))
			}
			if dir == DirectionUnset {
				dir = t.Kind
			}
		}
		if len(reads) > 0 && len(writes) > 0 {
			err = multierr.Append(err, fmt.Errorf("%s: state %q mixes read transitions %v and write transitions %v (invariant 2)", agent, name, reads, writes))
		}

		// Invariant 1: every target state must be defined.
		for _, msgName := range s.MessageOrder {
			t := s.Transitions[msgName]
			if _, ok := a.State(t.TargetState); !ok {
				err = multierr.Append(err, fmt.Errorf("%s: state %q transition %q targets undefined state %q (invariant 1)", agent, name, msgName, t.TargetState))
			}
		}

		// Invariant 5: identifiers used by actions must appear in the
		// transition's MessageData. Only presence is checked here; a field's
		// type is not compared against the action that uses it.
		for _, msgName := range s.MessageOrder {
			t := s.Transitions[msgName]
			err = multierr.Append(err, validateFieldRefs(agent, name, t))
		}

		// Invariant 4 / Open-Question-3: distinguishable prefixes among
		// multiple outgoing reads, including the "identical first static
		// prefix" rejection the generator's own source admits it can't
		// tie-break (Design Note 3 in spec.md).
		if len(reads) > 1 {
			err = multierr.Append(err, validateDistinguishable(agent, name, s, reads))
		}

		// Invariant 6: loop terminators never appear as a prefix of any
		// element's first action output.
		for _, msgName := range s.MessageOrder {
			err = multierr.Append(err, validateLoopTerminators(agent, name, msgName, s.Transitions[msgName].Actions))
		}
	}

	return err
}

func validateFieldRefs(agent Agent, state string, t *Transition) error {
	var err error
	var walk func(actions []Action)
	checkField := func(field string) {
		if t.Data == nil {
			err = multierr.Append(err, fmt.Errorf("%s: state %q transition %q: field %q referenced but no MessageData declared (invariant 5)", agent, state, t.MessageName, field))
			return
		}
		if _, ok := t.Data.Field(field); !ok {
			err = multierr.Append(err, fmt.Errorf("%s: state %q transition %q: field %q not declared in MessageData (invariant 5)", agent, state, t.MessageName, field))
		}
	}
	walk = func(actions []Action) {
		for _, a := range actions {
			switch a.Kind {
			case ReadOctetsUntilTerminator, WriteFromIdentifier:
				checkField(a.Field)
			case Loop:
				checkField(a.Collection)
				walk(a.Inner)
			}
		}
	}
	walk(t.Actions)
	return err
}

// firstActionPrefix is the bounded-prefix discriminator spec §4.3 describes
// for lookahead dispatch: a static literal, a terminator set (for
// terminator-scan actions, represented as nil since presence/absence of the
// terminator decides it, not a fixed prefix), or the first inner action of a
// Loop.
func firstActionPrefix(actions []Action) (lit []byte, isStatic bool) {
	if len(actions) == 0 {
		return nil, false
	}
	switch actions[0].Kind {
	case ReadStaticOctets:
		return actions[0].Literal, true
	case Loop:
		return firstActionPrefix(actions[0].Inner)
	default:
		return nil, false
	}
}

func validateDistinguishable(agent Agent, state string, s *State, reads []string) error {
	var err error
	for i := 0; i < len(reads); i++ {
		for j := i + 1; j < len(reads); j++ {
			a := s.Transitions[reads[i]].Actions
			b := s.Transitions[reads[j]].Actions
			litA, staticA := firstActionPrefix(a)
			litB, staticB := firstActionPrefix(b)
			if staticA && staticB && (bytes.HasPrefix(litA, litB) || bytes.HasPrefix(litB, litA)) {
				err = multierr.Append(err, fmt.Errorf(
					"%s: state %q: transitions %q and %q share an indistinguishable first static prefix (invariant 4; identical-prefix lookahead is unsupported, see Open Question)",
					agent, state, reads[i], reads[j]))
			}
		}
	}
	return err
}

func validateLoopTerminators(agent Agent, state, msgName string, actions []Action) error {
	var err error
	for _, a := range actions {
		if a.Kind != Loop {
			continue
		}
		elemLit, isStatic := firstActionPrefix(a.Inner)
		if isStatic && len(a.Terminator) > 0 && bytes.HasPrefix(elemLit, a.Terminator) {
			err = multierr.Append(err, fmt.Errorf(
				"%s: state %q transition %q: loop terminator %q is a prefix of element action output (invariant 6)",
				agent, state, msgName, a.Terminator))
		}
		err = multierr.Append(err, validateLoopTerminators(agent, state, msgName, a.Inner))
	}
	return err
}
