// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package vm

// Pad is a Continuation's lexical variable environment (spec §4.4 "Lexical
// pad"). Unlike Dict, Pad mutates in place: LexicalPadSet/Initialize write
// through it, the way executionstackframe.cpp's LexicalPad does. Each
// Continuation owns exactly one Pad; loop bodies read/write the same pad as
// their enclosing transition (generate.cpp never allocates a fresh pad per
// StaticCallable invocation — only the accumulator is per-frame).
type Pad struct {
	values map[string]Value
	order  []string
}

func NewPad() *Pad { return &Pad{values: map[string]Value{}} }

func (p *Pad) Get(name string) (Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Initialize sets name unconditionally and returns the value it was set to,
// matching LexicalPadInitialize's observed execute() result
// (tests/008-lexicalpad.cpp, initialize_get_and_set).
func (p *Pad) Initialize(name string, v Value) Value {
	if _, ok := p.values[name]; !ok {
		p.order = append(p.order, name)
	}
	p.values[name] = v
	return v
}

// Set overwrites name and returns the value that was there before, or a
// NameError Value if name was never initialized
// (tests/008-lexicalpad.cpp, set_nameerror).
func (p *Pad) Set(name string, v Value) Value {
	old, ok := p.values[name]
	if !ok {
		return ErrValue(NameError, "lexical pad: "+name+" not initialized")
	}
	p.values[name] = v
	return old
}

// AsDict snapshots the pad into an immutable Dict (OpLexicalPadAsDict),
// keyed in first-initialized order for deterministic iteration.
func (p *Pad) AsDict() *Dict {
	d := NewDict()
	for _, k := range p.order {
		d = d.With(k, p.values[k])
	}
	return d
}
