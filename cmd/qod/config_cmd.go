// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/qod/internal/config"
	"github.com/ManuGH/qod/internal/version"
	"github.com/google/renameio/v2"
)

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  qod config validate [--file|-f config.yaml]")
	fmt.Fprintln(w, "  qod config dump [--file|-f config.yaml] [--out|-o effective.yaml]")
}

// resolveConfigPath prefers the flag, then QOD_CONFIG.
func resolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv("QOD_CONFIG"))
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qod config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := resolveConfigPath(file)
	if _, err := config.NewLoader(configPath, version.Version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", displayPath(configPath), err)
		return 1
	}

	fmt.Fprintf(stdout, "%s is valid\n", displayPath(configPath))
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qod config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, out string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&out, "out", "", "write the effective configuration to this file instead of stdout")
	fs.StringVar(&out, "o", "", "output file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := resolveConfigPath(file)
	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", displayPath(configPath), err)
		return 1
	}

	data, err := config.Dump(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}

	if out == "" {
		_, _ = stdout.Write(data)
		return 0
	}
	if err := renameio.WriteFile(out, data, 0o600); err != nil {
		fmt.Fprintf(stderr, "Failed to write %s: %v\n", out, err)
		return 1
	}
	return 0
}

func displayPath(p string) string {
	if p == "" {
		return "defaults+env"
	}
	return p
}
