// Package automaton assembles and supervises the delegation hierarchy:
// it resolves declarations into runtime automata, memoizes construction
// per (identifier, delegator) pair, defers child construction until
// first use and wraps every run in lifecycle supervision.
package automaton

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jllopis/automata/pkg/budget"
	"github.com/jllopis/automata/pkg/core"
	"github.com/jllopis/automata/pkg/engine"
	"github.com/jllopis/automata/pkg/errors"
	"github.com/jllopis/automata/pkg/function"
	"github.com/jllopis/automata/pkg/llm"
	"github.com/jllopis/automata/pkg/prompt"
	"github.com/jllopis/automata/pkg/schema"
	"github.com/jllopis/automata/pkg/telemetry"
	"github.com/jllopis/automata/pkg/validator"
)

// EngineFactory builds the reasoning engine for one materialized
// composite node.
type EngineFactory func(decl schema.Declaration, spec prompt.Spec, children []core.Automaton, limits budget.Limits) (engine.Engine, error)

type cacheKey struct {
	identifier string
	delegator  string
}

// Loader resolves automaton declarations into supervised runtime
// automata. The cache it owns lives for the process run: two
// resolutions of the same (identifier, delegator) pair return the
// identical instance.
type Loader struct {
	source    schema.Source
	functions *function.Registry
	provider  llm.Provider
	policy    budget.Policy
	logger    *slog.Logger
	metrics   *telemetry.RunMetrics
	newEngine EngineFactory

	mu       sync.Mutex
	cache    map[cacheKey]core.Automaton
	verified map[string]bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithFunctions sets the leaf capability registry.
func WithFunctions(registry *function.Registry) Option {
	return func(l *Loader) { l.functions = registry }
}

// WithProvider sets the model provider used by reasoning engines and
// input validators.
func WithProvider(provider llm.Provider) Option {
	return func(l *Loader) { l.provider = provider }
}

// WithBudgetPolicy overrides the default execution budget policy.
func WithBudgetPolicy(policy budget.Policy) Option {
	return func(l *Loader) { l.policy = policy }
}

// WithLogger sets the logger lifecycle markers are emitted through.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics enables run outcome metrics.
func WithMetrics(metrics *telemetry.RunMetrics) Option {
	return func(l *Loader) { l.metrics = metrics }
}

// WithEngineFactory replaces the default reasoning engine.
func WithEngineFactory(factory EngineFactory) Option {
	return func(l *Loader) { l.newEngine = factory }
}

// NewLoader creates a loader over a declaration source.
func NewLoader(source schema.Source, opts ...Option) (*Loader, error) {
	if source == nil {
		return nil, fmt.Errorf("loader: declaration source is required")
	}
	l := &Loader{
		source:   source,
		policy:   budget.Default,
		cache:    make(map[cacheKey]core.Automaton),
		verified: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.newEngine == nil {
		l.newEngine = l.defaultEngineFactory
	}
	return l, nil
}

// Resolve returns the runtime automaton for identifier as requested by
// delegator (empty for top-level). Construction is memoized; the
// declared subtree is checked for unresolvable references, missing role
// templates and cycles before anything is built, so configuration
// contract violations surface here and not mid-execution.
func (l *Loader) Resolve(ctx context.Context, identifier, delegator string) (core.Automaton, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := cacheKey{identifier: identifier, delegator: delegator}
	if cached, ok := l.cache[key]; ok {
		return cached, nil
	}

	if err := l.verifyLocked(identifier, make(map[string]bool)); err != nil {
		return nil, err
	}

	decl, err := l.source.Declaration(identifier)
	if err != nil {
		return nil, err
	}

	var raw core.Automaton
	if decl.IsFunction() {
		if l.functions == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("automaton %q is a function but no capability registry is configured", identifier), nil)
		}
		raw, err = l.functions.Build(identifier, decl, delegator)
		if err != nil {
			return nil, err
		}
	} else {
		// Child construction and prompt assembly are deferred until the
		// node's first Run: a declared child the reasoning engine never
		// picks costs nothing beyond its declaration read.
		raw = newComposite(l, identifier, decl)
	}

	var gate *validator.Gate
	if decl.InputValidatorEngine != "" {
		if l.provider == nil {
			return nil, errors.New(errors.CodeConfig,
				fmt.Sprintf("automaton %q declares an input validator but no model provider is configured", identifier), nil)
		}
		gate = validator.New(l.provider, decl.InputValidatorEngine, decl.FullName(), decl.InputRequirements)
	}

	wrapped := Supervise(raw, SupervisorConfig{
		Gate:           gate,
		SuppressErrors: suppressPolicy(decl, delegator),
		Logger:         l.logger,
		Metrics:        l.metrics,
	})

	l.cache[key] = wrapped
	return wrapped, nil
}

// suppressPolicy: functions default to suppression, composites suppress
// when invoked as someone's child and propagate at the top level. A
// declaration may override either default.
func suppressPolicy(decl schema.Declaration, delegator string) bool {
	if decl.SuppressErrors != nil {
		return *decl.SuppressErrors
	}
	return decl.IsFunction() || delegator != ""
}

// verifyLocked walks the declared subtree rooted at identifier, failing
// fast on missing declarations, missing role templates and delegation
// cycles. Verified identifiers are memoized so repeated resolutions pay
// nothing.
func (l *Loader) verifyLocked(identifier string, path map[string]bool) error {
	if l.verified[identifier] {
		return nil
	}
	if path[identifier] {
		return errors.New(errors.CodeConfig,
			fmt.Sprintf("cyclic delegation detected: automaton %q transitively delegates to itself", identifier), nil)
	}
	path[identifier] = true
	defer delete(path, identifier)

	decl, err := l.source.Declaration(identifier)
	if err != nil {
		return err
	}
	if !decl.IsFunction() {
		if _, err := l.source.RoleTemplate(decl.Role); err != nil {
			return err
		}
		for _, child := range decl.SubAutomata {
			if err := l.verifyLocked(child, path); err != nil {
				return err
			}
		}
	}

	l.verified[identifier] = true
	return nil
}

func (l *Loader) defaultEngineFactory(decl schema.Declaration, spec prompt.Spec, children []core.Automaton, limits budget.Limits) (engine.Engine, error) {
	if l.provider == nil {
		return nil, errors.New(errors.CodeConfig,
			fmt.Sprintf("automaton %q requires a model provider or a custom engine factory", decl.Name), nil)
	}
	return engine.NewReact(l.provider, decl.Engine, spec, children, limits)
}
