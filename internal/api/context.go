// ABOUTME: Request context plumbing for the authenticated account
// ABOUTME: Provides WithAccount/FromContext for propagating identity to handlers

package api

import (
	"context"

	"github.com/2389/pairlink/internal/store"
)

// accountContextKey is the key type for storing the account in context.Context.
type accountContextKey struct{}

// WithAccount returns a new context with the authenticated account attached.
func WithAccount(ctx context.Context, account *store.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// FromContext retrieves the authenticated account, returning nil if not present.
func FromContext(ctx context.Context) *store.Account {
	val := ctx.Value(accountContextKey{})
	if val == nil {
		return nil
	}
	account, ok := val.(*store.Account)
	if !ok {
		return nil
	}
	return account
}

// MustFromContext retrieves the account from the context, panicking if not
// present. Only for handlers behind the auth middleware.
func MustFromContext(ctx context.Context) *store.Account {
	account := FromContext(ctx)
	if account == nil {
		panic("api: account not found in context")
	}
	return account
}
