// Package schema defines the declaration and role-template documents an
// automaton hierarchy is assembled from, and the sources that look them up.
package schema

import (
	"fmt"
	"strings"
)

// RoleFunction marks a leaf declaration. Every other role is composite
// and must have a matching role template.
const RoleFunction = "function"

// Declaration describes one automaton. It is read once per identifier
// per process and is immutable afterwards.
type Declaration struct {
	Name                 string   `yaml:"name"`
	Role                 string   `yaml:"role"`
	Rank                 int      `yaml:"rank"`
	Engine               string   `yaml:"engine"`
	Description          string   `yaml:"description"`
	InputRequirements    []string `yaml:"input_requirements"`
	Instructions         []string `yaml:"instructions"`
	Imperatives          []string `yaml:"imperatives"`
	SubAutomata          []string `yaml:"sub_automata"`
	InputValidatorEngine string   `yaml:"input_validator_engine"`

	// SuppressErrors overrides the default propagation policy for this
	// node. Unset means: functions suppress, composites suppress when
	// invoked as children and propagate at the top level.
	SuppressErrors *bool `yaml:"suppress_errors"`
}

// IsFunction reports whether the declaration is a leaf capability.
func (d Declaration) IsFunction() bool {
	return d.Role == RoleFunction
}

// FullName returns the globally unique runtime name, embedding role and
// rank for traceability.
func (d Declaration) FullName() string {
	return fmt.Sprintf("%s (%s %d)", d.Name, d.Role, d.Rank)
}

// RenderedRequirements returns the input requirements as a bulleted
// block, or "None" when the declaration has no requirements.
func (d Declaration) RenderedRequirements() string {
	if len(d.InputRequirements) == 0 {
		return "None"
	}
	lines := make([]string, len(d.InputRequirements))
	for i, req := range d.InputRequirements {
		lines[i] = "- " + req
	}
	return strings.Join(lines, "\n")
}

// CatalogDescription returns the description a delegator sees in its
// action catalog, with the input requirements appended.
func (d Declaration) CatalogDescription() string {
	return fmt.Sprintf("%s Input requirements:\n%s", d.Description, d.RenderedRequirements())
}

// Validate checks the structural invariants of a declaration.
func (d Declaration) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("declaration name is required")
	}
	if strings.TrimSpace(d.Role) == "" {
		return fmt.Errorf("declaration %q: role is required", d.Name)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("declaration %q: description is required", d.Name)
	}
	if d.Rank < 0 {
		return fmt.Errorf("declaration %q: rank must be non-negative, got %d", d.Name, d.Rank)
	}
	if d.IsFunction() && len(d.SubAutomata) > 0 {
		return fmt.Errorf("declaration %q: function role must not declare sub_automata", d.Name)
	}
	if !d.IsFunction() && len(d.SubAutomata) == 0 {
		return fmt.Errorf("declaration %q: composite role %q declares no sub_automata", d.Name, d.Role)
	}
	return nil
}

// RoleTemplate holds the shared prompt fragments for a composite role.
type RoleTemplate struct {
	Description  string   `yaml:"description"`
	Instructions []string `yaml:"instructions"`
	Imperatives  []string `yaml:"imperatives"`
	OutputFormat string   `yaml:"output_format"`
}

// Source looks up declarations and role templates. The storage format
// behind a Source is not the runtime's concern.
type Source interface {
	// Declaration returns the declaration for an identifier.
	Declaration(identifier string) (Declaration, error)

	// RoleTemplate returns the shared template for a composite role.
	RoleTemplate(role string) (RoleTemplate, error)
}
