// Copyright 2026 the netproto authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command netprotogen is the code-generator CLI spec §6.3 describes: it
// reads a protocol description, validates it, and emits the generated-code
// surface codegen.Generate produces.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"code.hybscloud.com/netproto/ast"
	"code.hybscloud.com/netproto/codegen"
)

const generateHelpDescription = `Usage:

   netprotogen [options...] <protocol.json>

Description:

   Reads a protocol description (the structured stand-in this toolchain
   accepts for the DSL's concrete syntax, which is a separate, out-of-scope
   concern) and emits its generated-code surface: per-message Go types,
   state-name constants, and a handler dispatch table builder.

Example:

   $ netprotogen --namespace smtp --out ./generated smtp.json
   $ netprotogen --namespace smtp --out ./generated --library smtpproto smtp.json`

func main() {
	app := cli.NewApp()
	app.Name = "netprotogen"
	app.Usage = "generate a sans-I/O protocol library from a protocol description"
	app.Description = generateHelpDescription
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "namespace", Usage: "Go package name for the generated files (required)"},
		cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
		cli.StringFlag{Name: "library", Usage: "build-manifest library name; omit to skip manifest emission"},
		cli.BoolFlag{Name: "verbose", Usage: "log each file written"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "netprotogen:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one protocol description path, got %d", c.NArg())
	}
	inputPath := c.Args().Get(0)
	namespace := c.String("namespace")
	if namespace == "" {
		return fmt.Errorf("--namespace is required")
	}
	outDir := c.String("out")
	library := c.String("library")

	logger := zap.NewNop()
	if c.Bool("verbose") {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	defer logger.Sync() //nolint:errcheck

	protocol, err := loadProtocol(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	if err := ast.Validate(protocol); err != nil {
		return err
	}

	gen := codegen.New(namespace, protocol)
	files, err := gen.Generate()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for name, content := range files {
		dst := filepath.Join(outDir, name)
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return err
		}
		logger.Info("wrote generated file", zap.String("path", dst))
	}

	if library != "" {
		manifest := codegen.BuildManifest(library, namespace, files)
		manifestJSON, err := json.Marshal(manifest)
		if err != nil {
			return err
		}
		dst := filepath.Join(outDir, "manifest.json")
		if err := os.WriteFile(dst, manifestJSON, 0o644); err != nil {
			return err
		}
		logger.Info("wrote build manifest", zap.String("path", dst))
	}

	return nil
}

func loadProtocol(path string) (*ast.Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p ast.Protocol
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
