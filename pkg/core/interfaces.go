package core

import "context"

// Automaton is a node in the delegation hierarchy. Composite nodes reason
// over a task and delegate to named children; leaf nodes perform a fixed
// capability. Both expose the same surface so a delegator never needs to
// know which kind it is talking to.
type Automaton interface {
	// Name returns the globally unique node name. It embeds the role and
	// rank so lifecycle markers and delegation transcripts stay traceable.
	Name() string

	// Description returns the catalog entry shown to a delegator,
	// including the node's rendered input requirements.
	Description() string

	// Run executes the node against a task and returns a plain string
	// result. Supervised nodes convert most internal failures into
	// string results; a non-nil error is reserved for propagation
	// policies that say the caller must see the failure.
	Run(ctx context.Context, task string) (string, error)
}
