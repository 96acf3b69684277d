// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codegen

import (
	"bytes"
	"go/format"
	"text/template"

	"github.com/pkg/errors"

	"code.hybscloud.com/netproto/ast"
)

// Generator renders one ast.Protocol into the generated-code surface spec
// §6.2 names: message types, state constants, and a handler-table builder.
type Generator struct {
	pkg   string
	model protocolModel
}

// New builds a Generator for protocol, whose generated files declare
// package pkg.
func New(pkg string, protocol *ast.Protocol) *Generator {
	return &Generator{pkg: pkg, model: buildProtocolModel(pkg, protocol)}
}

// Generate renders every output file, gofmt-ing each one. The returned map
// is keyed by the conventional filename within the target directory (§6.3's
// CLI writes these under its output-directory flag).
func (g *Generator) Generate() (map[string][]byte, error) {
	out := make(map[string][]byte)

	for filename, t := range map[string]*template.Template{
		"messages.go":     messagesTemplate,
		"states.go":       statesTemplate,
		"handlertable.go": handlerTableTemplate,
	} {
		rendered, err := render(t, g.model)
		if err != nil {
			return nil, errors.Wrapf(err, "codegen: %s", filename)
		}
		out[filename] = rendered
	}
	return out, nil
}

func render(t *template.Template, data protocolModel) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "gofmt %s", t.Name())
	}
	return formatted, nil
}
