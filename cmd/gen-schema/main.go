// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Command gen-schema writes the config JSON Schema used by editors and
// "gatehouse config validate".
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gatehouse/gatehouse/internal/config"
)

func main() {
	out := flag.String("out", filepath.Join("schemas", "config.schema.json"), "output path")
	flag.Parse()

	if err := generate(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", *out)
}

func generate(outPath string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
