// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"

	"code.hybscloud.com/netproto/ast"
)

// applyEscapeOnWrite replaces every in-memory Character run with its wire
// Sequence before the field's octets hit the output buffer (spec §3
// EscapeInfo). Grounded on
// original_source/src/networkprotocoldsl/operation/writeoctetswithescape.cpp:
// a plain byte-for-byte substring replace, never a regex or formatted
// substitution.
func applyEscapeOnWrite(value []byte, esc *ast.Escape) []byte {
	if esc == nil || len(esc.Character) == 0 {
		return value
	}
	return bytes.ReplaceAll(value, esc.Character, esc.Sequence)
}

// applyEscapeOnRead reverses applyEscapeOnWrite: every wire Sequence run
// found in the received octets is replaced back with the in-memory
// Character before the field value is bound.
func applyEscapeOnRead(wireBytes []byte, esc *ast.Escape) []byte {
	if esc == nil || len(esc.Sequence) == 0 {
		return wireBytes
	}
	return bytes.ReplaceAll(wireBytes, esc.Sequence, esc.Character)
}
