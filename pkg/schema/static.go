package schema

import (
	"fmt"

	"github.com/jllopis/automata/pkg/errors"
)

// Static is an in-memory Source. Useful for tests and for embedding a
// fixed hierarchy in a binary.
type Static struct {
	Declarations map[string]Declaration
	Roles        map[string]RoleTemplate
}

// Declaration implements Source.
func (s Static) Declaration(identifier string) (Declaration, error) {
	decl, ok := s.Declarations[identifier]
	if !ok {
		return Declaration{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("no declaration for automaton %q", identifier), nil)
	}
	if err := decl.Validate(); err != nil {
		return Declaration{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("invalid declaration %q", identifier), err)
	}
	return decl, nil
}

// RoleTemplate implements Source.
func (s Static) RoleTemplate(role string) (RoleTemplate, error) {
	tmpl, ok := s.Roles[role]
	if !ok {
		return RoleTemplate{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("no role template for role %q", role), nil)
	}
	return tmpl, nil
}
