// ABOUTME: Channel resolution for paired accounts
// ABOUTME: Derives the canonical channel ID both partners compute independently

package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/pairlink/internal/store"
)

// ID identifies the conversation channel for exactly one pair of accounts.
// It is derived, never stored: the two account IDs in lexical order joined
// with a separator, so both sides compute the same value without
// coordination.
type ID string

// separator joins the two account IDs. Account IDs are UUIDs and never
// contain it.
const separator = "|"

// IDFor returns the canonical channel ID for the unordered pair {a, b}.
func IDFor(a, b string) ID {
	if b < a {
		a, b = b, a
	}
	return ID(a + separator + b)
}

// Participants returns the two account IDs of the channel.
func (id ID) Participants() (string, string, error) {
	parts := strings.SplitN(string(id), separator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed channel id %q", string(id))
	}
	return parts[0], parts[1], nil
}

// Contains reports whether accountID is one of the channel's participants.
func (id ID) Contains(accountID string) bool {
	a, b, err := id.Participants()
	if err != nil {
		return false
	}
	return accountID == a || accountID == b
}

// AccountReader is the single read the resolver needs from storage.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*store.Account, error)
}

// Resolver maps an account to its pair channel. Read-only and idempotent.
type Resolver struct {
	accounts AccountReader
}

// NewResolver creates a Resolver backed by the given account reader.
func NewResolver(accounts AccountReader) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve returns the channel ID for the account's pairing.
// Returns store.ErrUnpaired if the account has no partner yet.
func (r *Resolver) Resolve(ctx context.Context, accountID string) (ID, error) {
	account, err := r.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("loading account: %w", err)
	}
	if !account.Paired() {
		return "", store.ErrUnpaired
	}
	return IDFor(account.ID, *account.PartnerID), nil
}
