package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pairlink/internal/store"
)

func TestIDFor_CanonicalOrdering(t *testing.T) {
	assert.Equal(t, IDFor("alice", "bob"), IDFor("bob", "alice"),
		"both sides must derive the same channel id")
	assert.Equal(t, ID("alice|bob"), IDFor("bob", "alice"))
}

func TestID_Participants(t *testing.T) {
	a, b, err := IDFor("bob", "alice").Participants()
	require.NoError(t, err)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)

	_, _, err = ID("garbage").Participants()
	assert.Error(t, err)
}

func TestID_Contains(t *testing.T) {
	id := IDFor("alice", "bob")
	assert.True(t, id.Contains("alice"))
	assert.True(t, id.Contains("bob"))
	assert.False(t, id.Contains("carol"))
	assert.False(t, ID("garbage").Contains("alice"))
}

func pairedAccounts(t *testing.T, s *store.MockStore) {
	t.Helper()
	ctx := context.Background()

	for _, acct := range []*store.Account{
		{ID: "alice", Email: "alice@example.com", PasswordHash: "x", PairingCode: "K7Q2PLM9", CreatedAt: time.Now()},
		{ID: "bob", Email: "bob@example.com", PasswordHash: "x", PairingCode: "BOBCODE1", CreatedAt: time.Now()},
		{ID: "carol", Email: "carol@example.com", PasswordHash: "x", PairingCode: "CAROLCD1", CreatedAt: time.Now()},
	} {
		require.NoError(t, s.CreateAccount(ctx, acct))
	}

	_, err := s.ClaimPartner(ctx, "bob", "K7Q2PLM9")
	require.NoError(t, err)
}

func TestResolver_BothSidesResolveSameChannel(t *testing.T) {
	s := store.NewMockStore()
	pairedAccounts(t, s)
	resolver := NewResolver(s)
	ctx := context.Background()

	chAlice, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	chBob, err := resolver.Resolve(ctx, "bob")
	require.NoError(t, err)

	assert.Equal(t, chAlice, chBob)
	assert.True(t, chAlice.Contains("alice"))
	assert.True(t, chAlice.Contains("bob"))
}

func TestResolver_Unpaired(t *testing.T) {
	s := store.NewMockStore()
	pairedAccounts(t, s)
	resolver := NewResolver(s)

	_, err := resolver.Resolve(context.Background(), "carol")
	assert.ErrorIs(t, err, store.ErrUnpaired)
}

func TestResolver_UnknownAccount(t *testing.T) {
	s := store.NewMockStore()
	resolver := NewResolver(s)

	_, err := resolver.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
