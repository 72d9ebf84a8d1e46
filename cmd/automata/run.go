// Copyright 2026 © The Automata Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/automata/pkg/automaton"
	"github.com/jllopis/automata/pkg/config"
	"github.com/jllopis/automata/pkg/function"
	"github.com/jllopis/automata/pkg/human"
	"github.com/jllopis/automata/pkg/llm"
	"github.com/jllopis/automata/pkg/mcpserver"
	"github.com/jllopis/automata/pkg/schema"
	"github.com/jllopis/automata/pkg/telemetry"
	"github.com/jllopis/automata/pkg/workspace"
)

func runRun(ctx context.Context, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	noTelemetry := cmd.Bool("no-telemetry", false, "Disable telemetry output")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	rest := cmd.Args()
	if len(rest) < 1 {
		fatal(fmt.Errorf("usage: automata run <identifier> [task...]"))
	}
	identifier := rest[0]
	task := strings.Join(rest[1:], " ")
	if task == "" {
		// Piped invocation: read the task from stdin.
		if isatty.IsTerminal(os.Stdin.Fd()) {
			fatal(fmt.Errorf("usage: automata run <identifier> <task...> (or pipe the task on stdin)"))
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatal(err)
		}
		task = strings.TrimSpace(string(data))
		if task == "" {
			fatal(fmt.Errorf("empty task on stdin"))
		}
	}

	loader, shutdown, err := buildLoader(cfg, *noTelemetry)
	if err != nil {
		fatal(err)
	}
	defer shutdown()

	node, err := loader.Resolve(ctx, identifier, "")
	if err != nil {
		fatal(err)
	}
	result, err := node.Run(ctx, task)
	if err != nil {
		fatal(err)
	}
	fmt.Println(result)
}

func runServeMCP(ctx context.Context, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	loader, shutdown, err := buildLoader(cfg, true)
	if err != nil {
		fatal(err)
	}
	defer shutdown()

	registry := schema.NewRegistry(cfg.Automata.Dir, cfg.Automata.RolesDir)
	identifiers, err := registry.Identifiers()
	if err != nil {
		fatal(err)
	}

	srv := mcpserver.New("automata", version, loader)
	for _, id := range identifiers {
		decl, err := registry.Declaration(id)
		if err != nil {
			fatal(err)
		}
		srv.RegisterAutomaton(id, decl)
	}
	if err := srv.ServeStdio(); err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

// buildLoader wires configuration into a ready loader: logging,
// telemetry, model provider, workspace store, human channel and the
// leaf capability registry.
func buildLoader(cfg *config.Config, noTelemetry bool) (*automaton.Loader, func(), error) {
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown := func() {}
	var metrics *telemetry.RunMetrics
	if !noTelemetry && cfg.Telemetry.Exporter != "none" {
		stop, err := telemetry.Init("automata", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init telemetry: %w", err)
		}
		shutdown = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := stop(ctx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}
		metrics, err = telemetry.NewRunMetrics()
		if err != nil {
			return nil, nil, err
		}
	}

	provider, err := newProvider(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	store, err := workspace.Open(cfg.Workspace.Root, cfg.Workspace.IndexPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	var humans human.Channel
	if console, err := human.NewConsole(); err == nil {
		humans = console
	} else {
		logger.Debug("human channel unavailable", "reason", err)
	}

	registry := schema.NewRegistry(cfg.Automata.Dir, cfg.Automata.RolesDir)
	functions := function.NewRegistry(provider, store, humans)

	loader, err := automaton.NewLoader(registry,
		automaton.WithFunctions(functions),
		automaton.WithProvider(provider),
		automaton.WithLogger(logger),
		automaton.WithMetrics(metrics),
	)
	if err != nil {
		return nil, nil, err
	}
	return loader, shutdown, nil
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return llm.NewOllama(cfg.BaseURL), nil
	case "mock":
		return &llm.MockProvider{Response: "mock response"}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
