// Package function provides the fixed set of leaf capabilities behind
// the uniform automaton call signature.
package function

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/automata/pkg/core"
	"github.com/jllopis/automata/pkg/errors"
	"github.com/jllopis/automata/pkg/human"
	"github.com/jllopis/automata/pkg/llm"
	"github.com/jllopis/automata/pkg/schema"
	"github.com/jllopis/automata/pkg/workspace"
)

// Capability identifiers understood by the registry.
const (
	Assistant = "assistant"
	SaveFile  = "save_file"
	LoadFile  = "load_file"
	ListFiles = "list_files"
	Reflect   = "reflect"
	Human     = "human"
	Finalize  = "finalize"
)

const assistantSystem = "You are a helpful assistant who can generate a variety of content. " +
	"However, if anyone asks you to access files, or refers to something from a past " +
	"interaction, you will immediately inform them that the task is not possible."

// Leaf is a fixed capability exposed through the Automaton interface.
type Leaf struct {
	name        string
	description string
	run         func(ctx context.Context, task string) (string, error)
}

// NewLeaf wraps a capability function as an automaton.
func NewLeaf(name, description string, run func(ctx context.Context, task string) (string, error)) *Leaf {
	return &Leaf{name: name, description: description, run: run}
}

func (l *Leaf) Name() string        { return l.name }
func (l *Leaf) Description() string { return l.description }

func (l *Leaf) Run(ctx context.Context, task string) (string, error) {
	return l.run(ctx, task)
}

// Registry dispatches declaration identifiers to leaf constructors.
type Registry struct {
	provider llm.Provider
	store    *workspace.Store
	humans   human.Channel
}

// NewRegistry creates a registry over the shared backends. Any backend
// may be nil; capabilities needing it then fail at construction.
func NewRegistry(provider llm.Provider, store *workspace.Store, humans human.Channel) *Registry {
	return &Registry{provider: provider, store: store, humans: humans}
}

// Supported lists the capability identifiers this registry can build.
func Supported() []string {
	return []string{Assistant, SaveFile, LoadFile, ListFiles, Reflect, Human, Finalize}
}

// Build constructs the leaf for identifier. The delegator identity
// scopes capabilities that touch shared resources.
func (r *Registry) Build(identifier string, decl schema.Declaration, delegator string) (core.Automaton, error) {
	name := decl.FullName()
	description := decl.CatalogDescription()

	switch identifier {
	case Assistant:
		if r.provider == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("capability %q requires a model provider", identifier), nil)
		}
		model := decl.Engine
		return NewLeaf(name, description, func(ctx context.Context, task string) (string, error) {
			return llm.Complete(ctx, r.provider, model, assistantSystem, task)
		}), nil

	case SaveFile:
		if r.store == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("capability %q requires a workspace store", identifier), nil)
		}
		return NewLeaf(name, description, r.saveFile(name, delegator)), nil

	case LoadFile:
		if r.store == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("capability %q requires a workspace store", identifier), nil)
		}
		return NewLeaf(name, description, r.loadFile(delegator)), nil

	case ListFiles:
		if r.store == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("capability %q requires a workspace store", identifier), nil)
		}
		return NewLeaf(name, description, r.listFiles(delegator)), nil

	case Reflect:
		return NewLeaf(name, description, func(ctx context.Context, task string) (string, error) {
			return fmt.Sprintf("I haven't done anything yet, and need to carefully consider "+
				"what to do next. My current reflection is: %s", task), nil
		}), nil

	case Human:
		if r.humans == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("capability %q requires a human channel", identifier), nil)
		}
		return NewLeaf(name, description, func(ctx context.Context, task string) (string, error) {
			return r.humans.Ask(ctx, task)
		}), nil

	case Finalize:
		// Never dispatched in practice: the reasoning engine intercepts
		// the finalize action before execution. Acts as identity if
		// called directly.
		return NewLeaf(name, description, func(ctx context.Context, task string) (string, error) {
			return task, nil
		}), nil
	}

	return nil, errors.New(errors.CodeConfig,
		fmt.Sprintf("unsupported function %q; supported functions: %s",
			identifier, strings.Join(Supported(), ", ")), nil)
}
