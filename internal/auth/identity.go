package auth

import "context"

// Identity is the authenticated caller, as carried by a verified token.
type Identity struct {
	UserID string
	Email  string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// MustIdentity returns the caller identity of a request that went through
// Middleware.Require. It panics when called on an unauthenticated context.
func MustIdentity(ctx context.Context) Identity {
	identity, ok := IdentityFrom(ctx)
	if !ok {
		panic("auth: request context carries no identity")
	}
	return identity
}
