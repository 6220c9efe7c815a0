package domain

import "context"

type principalKey struct{}

// ContextPrincipal carries the authenticated identity through request context.
// Store and service operations additionally take the owner ID as an explicit
// argument; the context value is only the transport-layer handoff.
type ContextPrincipal struct {
	ID    int64
	Name  string
	Email string
}

// WithPrincipal stores a ContextPrincipal in the context.
func WithPrincipal(ctx context.Context, p ContextPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the ContextPrincipal from the context.
func PrincipalFromContext(ctx context.Context) (ContextPrincipal, bool) {
	p, ok := ctx.Value(principalKey{}).(ContextPrincipal)
	return p, ok
}
