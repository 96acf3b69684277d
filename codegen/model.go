// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codegen emits the generated-code surface spec §6.2 describes:
// per-message data types, state names, a typed handler table builder, and
// (optionally) a build manifest. It walks ast.Protocol the same way
// original_source/src/networkprotocoldsl/generate.cpp does, but instead of
// building an in-memory optree it renders Go source text through
// text/template + go/format — the narrowest fit in the retrieved corpus for
// "emit source code from a typed tree" (see DESIGN.md for why no
// third-party templating library was pulled in for this).
package codegen

import (
	"fmt"
	"strings"

	"code.hybscloud.com/netproto/ast"
)

// goKeywords is the minimal set of identifiers model.go needs to dodge;
// protocol authors don't control Go reserved words but field/message names
// are free text in the DSL.
var goKeywords = map[string]bool{
	"type": true, "func": true, "range": true, "map": true, "interface": true,
	"struct": true, "chan": true, "go": true, "package": true, "import": true,
}

// exportedName turns a DSL identifier (message name, field name, state
// name) into an exported Go identifier: PascalCase, keyword-safe.
func exportedName(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	name := b.String()
	if name == "" {
		name = "Field"
	}
	if goKeywords[strings.ToLower(name)] {
		name += "_"
	}
	return name
}

// messageModel is one NamedMessageData rendered as a Go struct.
type messageModel struct {
	GoName string
	Fields []fieldModel
}

type fieldModel struct {
	GoName  string
	DSLName string
	GoType  string
	Kind    ast.TypeKind
	// ElemKind is valid only when Kind == TArray: the element type's own
	// Kind, so template/conversion code can tell array<int>/array<str> (for
	// which this generator can emit ToMessageData/FromMessageData) apart
	// from array<tuple<...>> (for which it can't, yet — see convertible).
	ElemKind ast.TypeKind
}

func goTypeOf(t ast.Type, fieldGoName string, extra *[]messageModel) string {
	switch t.Kind {
	case ast.TInt:
		if t.Unsigned {
			return "uint64"
		}
		return "int64"
	case ast.TStr:
		return "string"
	case ast.TArray:
		elem := goTypeOf(*t.Element, fieldGoName+"Elem", extra)
		return "[]" + elem
	case ast.TTuple:
		nested := messageModel{GoName: fieldGoName}
		for _, f := range t.TupleFields {
			fg := exportedName(f.Name)
			fm := fieldModel{
				GoName:  fg,
				DSLName: f.Name,
				GoType:  goTypeOf(f.Type, fieldGoName+fg, extra),
				Kind:    f.Type.Kind,
			}
			if f.Type.Kind == ast.TArray {
				fm.ElemKind = f.Type.Element.Kind
			}
			nested.Fields = append(nested.Fields, fm)
		}
		*extra = append(*extra, nested)
		return nested.GoName
	default:
		return "any"
	}
}

// buildMessage renders one ast.NamedMessageData plus any nested tuple
// structs its array-of-tuple fields require.
func buildMessage(data *ast.NamedMessageData) (messageModel, []messageModel) {
	m := messageModel{GoName: exportedName(data.Name) + "Data"}
	var extra []messageModel
	for _, f := range data.Fields {
		gn := exportedName(f.Name)
		fm := fieldModel{
			GoName:  gn,
			DSLName: f.Name,
			GoType:  goTypeOf(f.Type, gn, &extra),
			Kind:    f.Type.Kind,
		}
		if f.Type.Kind == ast.TArray {
			fm.ElemKind = f.Type.Element.Kind
		}
		m.Fields = append(m.Fields, fm)
	}
	return m, extra
}

// protocolModel is the full template input for one ast.Protocol.
type protocolModel struct {
	Package string
	Name    string

	Messages []messageModel
	States   []string

	ServerStates []stateModel
	ClientStates []stateModel
}

type stateModel struct {
	Name      string
	Messages  []string // message names valid to arrive/leave here
	Direction string   // "read" or "write"
}

func buildProtocolModel(pkg string, p *ast.Protocol) protocolModel {
	pm := protocolModel{Package: pkg, Name: exportedName(p.Name)}
	seen := map[string]bool{}
	for _, data := range p.Types {
		msg, extra := buildMessage(&data)
		if !seen[msg.GoName] {
			pm.Messages = append(pm.Messages, msg)
			seen[msg.GoName] = true
		}
		for _, e := range extra {
			if !seen[e.GoName] {
				pm.Messages = append(pm.Messages, e)
				seen[e.GoName] = true
			}
		}
	}

	stateSeen := map[string]bool{}
	addStates := func(as *ast.AgentStates, out *[]stateModel) {
		if as == nil {
			return
		}
		for _, name := range as.Order {
			if !stateSeen[name] {
				stateSeen[name] = true
				pm.States = append(pm.States, name)
			}
			s := as.States[name]
			sm := stateModel{Name: name, Direction: s.Direction().String()}
			sm.Messages = append(sm.Messages, s.MessageOrder...)
			*out = append(*out, sm)
		}
	}
	// Server first, then Client: iterating each agent's own declaration
	// order (rather than collecting names into a map first) keeps
	// pm.States deterministic across runs, matching Design Note 6.
	addStates(p.Server, &pm.ServerStates)
	addStates(p.Client, &pm.ClientStates)
	return pm
}

// Convertible reports whether field-level ToMessageData/FromMessageData
// conversion code can be generated for f. Array-of-tuple fields still get a
// Go struct field (so the type is complete) but are left for the caller to
// convert by hand — recursive array/tuple conversion codegen is beyond this
// generator's current scope (see DESIGN.md).
func (f fieldModel) Convertible() bool {
	return f.Kind == ast.TInt || f.Kind == ast.TStr || (f.Kind == ast.TArray && f.ElemKind != ast.TTuple)
}

// ToValueStmt renders the statement(s) that bind d[f.DSLName] from m.f.GoName
// inside a {{.GoName}}.ToMessageData method body. Array fields are wrapped in
// their own block so repeated loop-variable names (i, e, vals) never
// collide across fields in the same method — go/format reindents the
// result, so the literal block braces cost nothing at render time.
func (f fieldModel) ToValueStmt() string {
	switch f.Kind {
	case ast.TInt:
		return fmt.Sprintf(`d[%q] = wire.Value{Kind: ast.TInt, Int: int64(m.%s)}`, f.DSLName, f.GoName)
	case ast.TStr:
		return fmt.Sprintf(`d[%q] = wire.Value{Kind: ast.TStr, Str: m.%s}`, f.DSLName, f.GoName)
	case ast.TArray:
		elemExpr := "int64(e)"
		if f.ElemKind == ast.TStr {
			elemExpr = "string(e)"
		}
		elemValueKind := "ast.TInt"
		elemField := "Int"
		if f.ElemKind == ast.TStr {
			elemValueKind, elemField = "ast.TStr", "Str"
		}
		return fmt.Sprintf(`{
	vals := make([]wire.Value, len(m.%s))
	for i, e := range m.%s {
		vals[i] = wire.Value{Kind: %s, %s: %s}
	}
	d[%q] = wire.Value{Kind: ast.TArray, Array: vals}
}`, f.GoName, f.GoName, elemValueKind, elemField, elemExpr, f.DSLName)
	default:
		return ""
	}
}

// FromValueStmt is ToValueStmt's inverse, used in the generated
// {{.GoName}}FromMessageData function body.
func (f fieldModel) FromValueStmt() string {
	elemType := strings.TrimPrefix(f.GoType, "[]")
	switch f.Kind {
	case ast.TInt:
		if strings.HasPrefix(f.GoType, "uint") {
			return fmt.Sprintf(`m.%s = uint64(d[%q].Int)`, f.GoName, f.DSLName)
		}
		return fmt.Sprintf(`m.%s = d[%q].Int`, f.GoName, f.DSLName)
	case ast.TStr:
		return fmt.Sprintf(`m.%s = d[%q].Str`, f.GoName, f.DSLName)
	case ast.TArray:
		elemAccess := "v.Int"
		if f.ElemKind == ast.TStr {
			elemAccess = "v.Str"
		}
		return fmt.Sprintf(`{
	vals := d[%q].Array
	out := make([]%s, len(vals))
	for i, v := range vals {
		out[i] = %s(%s)
	}
	m.%s = out
}`, f.DSLName, elemType, elemType, elemAccess, f.GoName)
	default:
		return ""
	}
}
