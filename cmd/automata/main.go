// Copyright 2026 © The Automata Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/jllopis/automata/pkg/config"
	"github.com/jllopis/automata/pkg/schema"
)

const version = "dev"

type globalFlags struct {
	ConfigPath string
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(fmt.Errorf("failed to load config: %w", err))
	}

	switch args[0] {
	case "run":
		runRun(ctx, cfg, args[1:])
	case "validate":
		runValidate(cfg, args[1:])
	case "list":
		runList(cfg, args[1:])
	case "serve-mcp":
		runServeMCP(ctx, cfg, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println(version)
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func runList(cfg *config.Config, args []string) {
	ensureNoArgs(args)
	registry := schema.NewRegistry(cfg.Automata.Dir, cfg.Automata.RolesDir)
	identifiers, err := registry.Identifiers()
	if err != nil {
		fatal(err)
	}
	sort.Strings(identifiers)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, id := range identifiers {
		decl, err := registry.Declaration(id)
		if err != nil {
			fmt.Fprintf(w, "%s\t<error: %v>\n", id, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, decl.FullName(), firstLine(decl.Description))
	}
	w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func printUsage() {
	fmt.Println(`Automata CLI

Usage:
  automata [global flags] <command> [args]

Global flags:
  --config <path>      Path to config YAML

Commands:
  run <identifier> <task...>   Run one automaton on a task
  validate [identifier]        Check declarations, roles and references
  list                         List configured automata
  serve-mcp                    Expose automata as MCP tools on stdio
  version
  help`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
