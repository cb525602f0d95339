package auth

import (
	"context"
	"fmt"
)

// Resolver turns bearer tokens into users.
type Resolver struct {
	store  Store
	secret string
}

// NewResolver creates a resolver that verifies tokens with secret.
func NewResolver(store Store, secret string) *Resolver {
	return &Resolver{store: store, secret: secret}
}

// ResolveIdentity verifies token, checks it has not been revoked and loads
// its user. Authentication failures wrap ErrTokenMissing or ErrTokenInvalid;
// any other error is a storage failure.
func (r *Resolver) ResolveIdentity(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims, err := ParseToken(token, r.secret)
	if err != nil {
		return nil, err
	}

	ok, err := r.store.TokenExists(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: token revoked", ErrTokenInvalid)
	}

	return r.store.GetUser(ctx, claims.Result.ID)
}
