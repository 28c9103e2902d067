package auth

import "context"

type actorIDKey struct{}

// WithActorID attaches the authenticated caller's actor id to the context.
// The intent-normaliser only recognises a single service principal per
// deployment, so the actor id is an opaque caller-supplied label rather than
// a resolved user/tenant identity.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// GetActorID retrieves the actor id set by the bearer middleware. Returns ""
// if none was set (e.g. in tests that bypass the middleware chain).
func GetActorID(ctx context.Context) string {
	id, _ := ctx.Value(actorIDKey{}).(string)
	return id
}
