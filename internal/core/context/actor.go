// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Actor identifies who performs an operation. Attribution fields on financial
// records (created_by, set_by, responsible) are filled from it. The HTTP layer
// is responsible for supplying an authenticated identity; the ledger core only
// consumes it.
type Actor struct {
	ID   string
	Name string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context, or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the acting identity from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ID
	}
	return ""
}

// GetActorName returns the acting display name from context or empty string.
func GetActorName(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.Name
	}
	return ""
}
