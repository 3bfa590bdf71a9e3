package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testAccount(id, email, code string) *Account {
	return &Account{
		ID:           id,
		Email:        email,
		PasswordHash: "x",
		PairingCode:  code,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestStore_CreateAccount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateAccount(ctx, testAccount("acct-1", "a@example.com", "K7Q2PLM9"))
	require.NoError(t, err)

	retrieved, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", retrieved.Email)
	assert.Equal(t, "K7Q2PLM9", retrieved.PairingCode)
	assert.Nil(t, retrieved.PartnerID)
	assert.False(t, retrieved.Paired())
}

func TestStore_CreateAccount_DuplicateEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("acct-1", "a@example.com", "CODE1AAA")))

	err := store.CreateAccount(ctx, testAccount("acct-2", "a@example.com", "CODE2BBB"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestStore_CreateAccount_DuplicateCode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("acct-1", "a@example.com", "CODE1AAA")))

	err := store.CreateAccount(ctx, testAccount("acct-2", "b@example.com", "CODE1AAA"))
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestStore_GetAccount_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetAccount(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetAccountByCode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("acct-1", "a@example.com", "K7Q2PLM9")))

	account, err := store.GetAccountByCode(ctx, "K7Q2PLM9")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", account.ID)

	_, err = store.GetAccountByCode(ctx, "UNKNOWN1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ClaimPartner(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("alice", "alice@example.com", "K7Q2PLM9")))
	require.NoError(t, store.CreateAccount(ctx, testAccount("bob", "bob@example.com", "BOBCODE1")))

	partner, err := store.ClaimPartner(ctx, "bob", "K7Q2PLM9")
	require.NoError(t, err)
	assert.Equal(t, "alice", partner.ID)

	// Both sides must point at each other
	alice, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	bob, err := store.GetAccount(ctx, "bob")
	require.NoError(t, err)

	require.NotNil(t, alice.PartnerID)
	require.NotNil(t, bob.PartnerID)
	assert.Equal(t, "bob", *alice.PartnerID)
	assert.Equal(t, "alice", *bob.PartnerID)
}

func TestStore_ClaimPartner_CodeNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("bob", "bob@example.com", "BOBCODE1")))

	_, err := store.ClaimPartner(ctx, "bob", "NOPENOPE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestStore_ClaimPartner_SelfClaim(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("alice", "alice@example.com", "K7Q2PLM9")))

	_, err := store.ClaimPartner(ctx, "alice", "K7Q2PLM9")
	assert.ErrorIs(t, err, ErrSelfClaim)
}

func TestStore_ClaimPartner_UsedCode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("alice", "alice@example.com", "K7Q2PLM9")))
	require.NoError(t, store.CreateAccount(ctx, testAccount("bob", "bob@example.com", "BOBCODE1")))
	require.NoError(t, store.CreateAccount(ctx, testAccount("carol", "carol@example.com", "CAROLCD1")))

	_, err := store.ClaimPartner(ctx, "bob", "K7Q2PLM9")
	require.NoError(t, err)

	// Re-claiming an already-used code fails
	_, err = store.ClaimPartner(ctx, "carol", "K7Q2PLM9")
	assert.ErrorIs(t, err, ErrAlreadyPaired)

	// A paired caller cannot claim another code either
	_, err = store.ClaimPartner(ctx, "bob", "CAROLCD1")
	assert.ErrorIs(t, err, ErrAlreadyPaired)

	// Carol stays unpaired throughout
	carol, err := store.GetAccount(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, carol.Paired())
}

func TestStore_ClaimPartner_ConcurrentSameCode(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("alice", "alice@example.com", "K7Q2PLM9")))

	const claimers = 8
	for i := range claimers {
		id := fmt.Sprintf("claimer-%d", i)
		require.NoError(t, store.CreateAccount(ctx,
			testAccount(id, id+"@example.com", fmt.Sprintf("CLMCODE%d", i))))
	}

	results := make(chan error, claimers)
	for i := range claimers {
		go func(id string) {
			_, err := store.ClaimPartner(ctx, id, "K7Q2PLM9")
			results <- err
		}(fmt.Sprintf("claimer-%d", i))
	}

	var wins, losses int
	for range claimers {
		err := <-results
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrAlreadyPaired):
			losses++
		}
	}

	assert.Equal(t, 1, wins, "exactly one concurrent claim must win")
	assert.Equal(t, claimers-1, losses)

	// Alice's partner is exactly one of the claimers, and it points back
	alice, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	require.True(t, alice.Paired())

	winner, err := store.GetAccount(ctx, *alice.PartnerID)
	require.NoError(t, err)
	require.True(t, winner.Paired())
	assert.Equal(t, "alice", *winner.PartnerID)
}

func TestStore_ListAccounts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		acct := testAccount(fmt.Sprintf("acct-%d", i), fmt.Sprintf("u%d@example.com", i), fmt.Sprintf("LISTCDE%d", i))
		acct.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.CreateAccount(ctx, acct))
	}

	accounts, err := store.ListAccounts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "acct-0", accounts[0].ID)
	assert.Equal(t, "acct-2", accounts[2].ID)
}

func TestStore_BusyTimeoutConfigured(t *testing.T) {
	store := setupTestStore(t)

	var timeout int
	require.NoError(t, store.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}
