// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codegen

import "text/template"

var templateFuncs = template.FuncMap{
	"export": exportedName,
}

// messagesTemplate renders every message's Go struct plus its
// ToMessageData/FromMessageData conversion pair (spec §6.2: "per-message
// data types"). Non-convertible fields (array-of-tuple, for now) still get
// a struct field; callers populate and read those by hand.
var messagesTemplate = template.Must(template.New("messages").Funcs(templateFuncs).Parse(`// Code generated by netprotogen. DO NOT EDIT.

package {{.Package}}

import (
	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/wire"
)
{{range .Messages}}
// {{.GoName}} is the generated field layout for the "{{.GoName}}" message.
type {{.GoName}} struct {
{{range .Fields}}	{{.GoName}} {{.GoType}}
{{end}}}

// ToMessageData converts m into the untyped form the runtime serializer
// consumes.
func (m {{.GoName}}) ToMessageData() wire.MessageData {
	d := make(wire.MessageData)
{{range .Fields}}{{if .Convertible}}	{{.ToValueStmt}}
{{end}}{{end}}	return d
}

// {{.GoName}}FromMessageData converts the untyped form the runtime parser
// produces into m.
func {{.GoName}}FromMessageData(d wire.MessageData) {{.GoName}} {
	var m {{.GoName}}
{{range .Fields}}{{if .Convertible}}	{{.FromValueStmt}}
{{end}}{{end}}	return m
}
{{end}}
`))

// statesTemplate renders the protocol's state names as typed constants
// (spec §6.2: "state names") so handler tables can key on them without
// stray string literals.
var statesTemplate = template.Must(template.New("states").Funcs(templateFuncs).Parse(`// Code generated by netprotogen. DO NOT EDIT.

package {{.Package}}

// {{.Name}}State names a state declared by the protocol, shared by the
// client and server agents.
type {{.Name}}State = string

const (
{{range .States}}	{{$.Name}}State{{. | export}} {{$.Name}}State = "{{.}}"
{{end}})
`))

// handlerTableTemplate renders a typed builder for the handler.Table this
// protocol's server agent needs (spec §4.5, §6.2: "generated dispatch
// surface"). It returns an empty table the caller fills in per message —
// generating the call sites themselves would require committing to
// argument shapes the protocol author hasn't written yet.
var handlerTableTemplate = template.Must(template.New("handlertable").Funcs(templateFuncs).Parse(`// Code generated by netprotogen. DO NOT EDIT.

package {{.Package}}

import "code.hybscloud.com/netproto/handler"

// New{{.Name}}ServerTable returns an empty dispatch table keyed by every
// read-transition (state, message) pair the server agent declares. Callers
// assign a handler.Func to each entry before passing the table to
// handler.New.
func New{{.Name}}ServerTable() handler.Table {
	t := make(handler.Table)
{{range .ServerStates}}{{if eq .Direction "read"}}	t["{{.Name}}"] = make(map[string]handler.Func)
{{$state := .Name}}{{range .Messages}}	t["{{$state}}"]["{{.}}"] = nil
{{end}}{{end}}{{end}}	return t
}
`))
