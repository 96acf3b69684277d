// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command netprotogen and its supporting packages implement a small
// toolchain for byte-oriented, text-framed network protocols: a typed AST
// (ast) and lowered action IR (ir) describing a protocol's states,
// messages, and wire actions; a sans-I/O parser/serializer pair (wire) and
// generated-style dispatcher (statemachine, handler) driven from that IR;
// an operation-tree compiler (optree) and stack-based interpreter (vm) that
// reproduce the identical wire behavior without code generation; and a code
// generator (codegen) plus CLI (cmd/netprotogen) that emit the generated
// path as a standalone Go package. The module ships no examples directory;
// each package's tests exercise it against small HELO/QUIT-style fixtures.
package netproto
