package automaton

import (
	"context"
	"sync"

	"github.com/jllopis/automata/pkg/core"
	"github.com/jllopis/automata/pkg/engine"
	"github.com/jllopis/automata/pkg/prompt"
	"github.com/jllopis/automata/pkg/schema"
)

// composite is a two-phase node: declared (metadata only, cheap) until
// its first Run, materialized (children resolved, prompt assembled,
// engine constructed) afterwards. Materialization is memoized.
type composite struct {
	loader     *Loader
	identifier string
	decl       schema.Declaration

	once    sync.Once
	engine  engine.Engine
	initErr error
}

func newComposite(loader *Loader, identifier string, decl schema.Declaration) *composite {
	return &composite{
		loader:     loader,
		identifier: identifier,
		decl:       decl,
	}
}

func (c *composite) Name() string        { return c.decl.FullName() }
func (c *composite) Description() string { return c.decl.CatalogDescription() }

// Run materializes the node on first call, then hands the task to the
// reasoning engine. The node becomes the delegator for everything it
// resolves or invokes below itself.
func (c *composite) Run(ctx context.Context, task string) (string, error) {
	c.once.Do(func() {
		c.engine, c.initErr = c.materialize(ctx)
	})
	if c.initErr != nil {
		return "", c.initErr
	}
	return c.engine.Execute(core.WithDelegator(ctx, c.identifier), task)
}

func (c *composite) materialize(ctx context.Context) (engine.Engine, error) {
	children := make([]core.Automaton, 0, len(c.decl.SubAutomata))
	for _, childID := range c.decl.SubAutomata {
		child, err := c.loader.Resolve(ctx, childID, c.identifier)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	role, err := c.loader.source.RoleTemplate(c.decl.Role)
	if err != nil {
		return nil, err
	}

	spec := prompt.Assemble(c.decl, role, children)
	limits := c.loader.policy.ForRank(c.decl.Rank)
	return c.loader.newEngine(c.decl, spec, children, limits)
}
