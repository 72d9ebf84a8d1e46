package core

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}
type delegatorKey struct{}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRunID(ctx, id), id
}

// WithDelegator records the identity of the node that requested the
// current call.
func WithDelegator(ctx context.Context, delegator string) context.Context {
	return context.WithValue(ctx, delegatorKey{}, delegator)
}

// Delegator returns the requesting node identity if present. The empty
// string means the call originated at the top level.
func Delegator(ctx context.Context) string {
	delegator, _ := ctx.Value(delegatorKey{}).(string)
	return delegator
}
