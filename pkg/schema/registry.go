package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/automata/pkg/errors"
)

// Registry is a directory-backed Source: one YAML document per automaton
// identifier under Dir, one per role under RolesDir. Reads are memoized
// for the process lifetime; declarations are immutable once read.
type Registry struct {
	dir      string
	rolesDir string

	mu    sync.Mutex
	decls map[string]Declaration
	roles map[string]RoleTemplate
}

// NewRegistry creates a registry over the given directories.
func NewRegistry(dir, rolesDir string) *Registry {
	return &Registry{
		dir:      dir,
		rolesDir: rolesDir,
		decls:    make(map[string]Declaration),
		roles:    make(map[string]RoleTemplate),
	}
}

// Declaration reads and caches the declaration for identifier.
func (r *Registry) Declaration(identifier string) (Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if decl, ok := r.decls[identifier]; ok {
		return decl, nil
	}

	path, err := declarationPath(r.dir, identifier)
	if err != nil {
		return Declaration{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Declaration{}, errors.New(errors.CodeConfig,
				fmt.Sprintf("no declaration for automaton %q", identifier), err)
		}
		return Declaration{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("read declaration %q", identifier), err)
	}

	var decl Declaration
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return Declaration{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("parse declaration %q", identifier), err)
	}
	if err := decl.Validate(); err != nil {
		return Declaration{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("invalid declaration %q", identifier), err)
	}

	r.decls[identifier] = decl
	return decl, nil
}

// RoleTemplate reads and caches the template for a composite role.
func (r *Registry) RoleTemplate(role string) (RoleTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.roles[role]; ok {
		return tmpl, nil
	}

	path, err := declarationPath(r.rolesDir, role)
	if err != nil {
		return RoleTemplate{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RoleTemplate{}, errors.New(errors.CodeConfig,
				fmt.Sprintf("no role template for role %q", role), err)
		}
		return RoleTemplate{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("read role template %q", role), err)
	}

	var tmpl RoleTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return RoleTemplate{}, errors.New(errors.CodeConfig,
			fmt.Sprintf("parse role template %q", role), err)
	}

	r.roles[role] = tmpl
	return tmpl, nil
}

// Identifiers lists every declaration identifier under the registry
// directory, sorted.
func (r *Registry) Identifiers() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "list declarations", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ext))
	}
	sort.Strings(out)
	return out, nil
}

// declarationPath resolves <dir>/<identifier>.yml, preferring .yml and
// falling back to .yaml. Identifiers must not escape the directory.
func declarationPath(dir, identifier string) (string, error) {
	if identifier == "" || identifier != filepath.Base(identifier) || strings.Contains(identifier, "..") {
		return "", errors.New(errors.CodeConfig,
			fmt.Sprintf("invalid identifier %q", identifier), nil)
	}
	yml := filepath.Join(dir, identifier+".yml")
	if _, err := os.Stat(yml); err == nil {
		return yml, nil
	}
	return filepath.Join(dir, identifier+".yaml"), nil
}
