// Package prompt assembles the specification handed to a reasoning engine:
// role template fragments merged with per-node overrides, plus the action
// catalog formed by the node's resolved children.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jllopis/automata/pkg/core"
	"github.com/jllopis/automata/pkg/schema"
)

// Action is one entry in the catalog presented to the reasoning engine.
// Only listed names are permitted as delegation targets.
type Action struct {
	Name        string
	Description string
}

// Spec is the assembled prompt specification for one composite node.
// It is deterministic given the declaration, its role template and its
// resolved children.
type Spec struct {
	RoleDescription   string
	InputRequirements string
	Instructions      []string
	Imperatives       []string
	OutputFormat      string
	Actions           []Action
}

// Assemble merges the role template with the node's own instructions and
// imperatives (role defaults first, node-specific appended) and records
// the children as the allowed action catalog.
func Assemble(decl schema.Declaration, role schema.RoleTemplate, children []core.Automaton) Spec {
	spec := Spec{
		RoleDescription:   role.Description,
		InputRequirements: decl.RenderedRequirements(),
		Instructions:      mergeFragments(role.Instructions, decl.Instructions),
		Imperatives:       mergeFragments(role.Imperatives, decl.Imperatives),
		OutputFormat:      role.OutputFormat,
	}
	spec.Actions = make([]Action, len(children))
	for i, child := range children {
		spec.Actions[i] = Action{
			Name:        child.Name(),
			Description: child.Description(),
		}
	}
	return spec
}

// ActionNames returns the permitted delegation target names, in catalog
// order.
func (s Spec) ActionNames() []string {
	names := make([]string, len(s.Actions))
	for i, action := range s.Actions {
		names[i] = action.Name
	}
	return names
}

// System renders the specification into the system context for the
// reasoning engine.
func (s Spec) System() string {
	var b strings.Builder

	b.WriteString(s.RoleDescription)
	b.WriteString("\n\nImperatives:\n")
	b.WriteString(bullets(s.Imperatives))
	b.WriteString("\n\nInstructions:\n")
	b.WriteString(bullets(s.Instructions))
	b.WriteString("\n\nInput requirements for tasks handed to you:\n")
	b.WriteString(s.InputRequirements)

	b.WriteString("\n\nYou can delegate to the following sub-automata:\n")
	for _, action := range s.Actions {
		fmt.Fprintf(&b, "%s: %s\n", action.Name, action.Description)
	}

	b.WriteString("\n")
	b.WriteString(s.OutputFormat)
	return b.String()
}

func mergeFragments(base, overrides []string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	merged = append(merged, base...)
	merged = append(merged, overrides...)
	return merged
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "- None"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
