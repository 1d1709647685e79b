package shared

import "context"

// Identity carries the organization scope and acting user injected by the
// upstream auth gateway. Every /api request is resolved against OrgID.
type Identity struct {
	OrgID   int64
	ActorID int64
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.OrgID != 0
}
