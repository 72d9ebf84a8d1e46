// Copyright 2026 © The Automata Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/jllopis/automata/pkg/config"
	"github.com/jllopis/automata/pkg/schema"
)

// runValidate checks every declaration (or one subtree) without running
// anything: structural invariants, role templates, child references,
// delegation cycles. Rank inversions are reported as warnings since a
// child outranking its delegator inflates budgets but still executes.
func runValidate(cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	rest := cmd.Args()
	if len(rest) > 1 {
		fatal(fmt.Errorf("usage: automata validate [identifier]"))
	}

	registry := schema.NewRegistry(cfg.Automata.Dir, cfg.Automata.RolesDir)

	var roots []string
	if len(rest) == 1 {
		roots = rest
	} else {
		identifiers, err := registry.Identifiers()
		if err != nil {
			fatal(err)
		}
		roots = identifiers
		sort.Strings(roots)
	}

	v := &validation{registry: registry, checked: make(map[string]bool)}
	for _, root := range roots {
		v.check(root, make(map[string]bool))
	}

	for _, warning := range v.warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}
	if len(v.problems) > 0 {
		for _, problem := range v.problems {
			fmt.Fprintln(os.Stderr, "error:", problem)
		}
		os.Exit(1)
	}
	fmt.Printf("%d automata OK\n", len(v.checked))
}

type validation struct {
	registry *schema.Registry
	checked  map[string]bool
	problems []string
	warnings []string
}

func (v *validation) check(identifier string, path map[string]bool) {
	if path[identifier] {
		v.problems = append(v.problems,
			fmt.Sprintf("cyclic delegation: %q transitively delegates to itself", identifier))
		return
	}

	decl, err := v.registry.Declaration(identifier)
	if err != nil {
		v.problems = append(v.problems, err.Error())
		return
	}
	if v.checked[identifier] {
		return
	}
	v.checked[identifier] = true

	if err := decl.Validate(); err != nil {
		v.problems = append(v.problems, err.Error())
		return
	}
	if decl.IsFunction() {
		return
	}

	if _, err := v.registry.RoleTemplate(decl.Role); err != nil {
		v.problems = append(v.problems, err.Error())
	}

	path[identifier] = true
	defer delete(path, identifier)
	for _, childID := range decl.SubAutomata {
		child, err := v.registry.Declaration(childID)
		if err != nil {
			v.problems = append(v.problems,
				fmt.Sprintf("%q references %q: %v", identifier, childID, err))
			continue
		}
		if child.Rank >= decl.Rank {
			v.warnings = append(v.warnings,
				fmt.Sprintf("%q (rank %d) delegates to %q (rank %d); children usually carry lower ranks",
					identifier, decl.Rank, childID, child.Rank))
		}
		v.check(childID, path)
	}
}
