// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.Mutex
	accounts   map[string]*Account // keyed by account ID
	byEmail    map[string]string   // email -> account ID
	byCode     map[string]string   // pairing code -> account ID
	entries    map[string][]*Entry // keyed by channel ID, append order
	lastAppend time.Time
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		byCode:   make(map[string]string),
		entries:  make(map[string][]*Entry),
	}
}

// CreateAccount stores a new account.
func (m *MockStore) CreateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[account.Email]; exists {
		return ErrDuplicateEmail
	}
	if _, exists := m.byCode[account.PairingCode]; exists {
		return ErrDuplicateCode
	}

	// Make a copy to avoid external modification
	a := *account
	m.accounts[a.ID] = &a
	m.byEmail[a.Email] = a.ID
	m.byCode[a.PairingCode] = a.ID

	return nil
}

// GetAccount retrieves an account by ID.
func (m *MockStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *MockStore) getLocked(id string) (*Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	a := *account
	return &a, nil
}

// GetAccountByEmail retrieves an account by email.
func (m *MockStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return m.getLocked(id)
}

// GetAccountByCode retrieves the account holding the given pairing code.
func (m *MockStore) GetAccountByCode(ctx context.Context, code string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m.getLocked(id)
}

// ListAccounts returns accounts ordered by creation time.
func (m *MockStore) ListAccounts(ctx context.Context, limit int) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		a := *account
		accounts = append(accounts, &a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})

	if len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// ClaimPartner links the caller to the code owner under the store lock,
// mirroring the SQLite transaction semantics.
func (m *MockStore) ClaimPartner(ctx context.Context, callerID, code string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ownerID, ok := m.byCode[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if ownerID == callerID {
		return nil, ErrSelfClaim
	}

	owner, ok := m.accounts[ownerID]
	if !ok {
		return nil, ErrCodeNotFound
	}
	caller, ok := m.accounts[callerID]
	if !ok {
		return nil, ErrNotFound
	}

	if owner.Paired() || caller.Paired() {
		return nil, ErrAlreadyPaired
	}

	owner.PartnerID = &caller.ID
	caller.PartnerID = &owner.ID

	result := *owner
	return &result, nil
}

// AppendEntry stores an entry, assigning ID and timestamp like the SQLite store.
func (m *MockStore) AppendEntry(ctx context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if !now.After(m.lastAppend) {
		now = m.lastAppend.Add(time.Nanosecond)
	}
	m.lastAppend = now
	entry.CreatedAt = now

	e := *entry
	m.entries[e.ChannelID] = append(m.entries[e.ChannelID], &e)
	return nil
}

// ListEntries returns a page of a channel's entries in (created_at, id) order.
func (m *MockStore) ListEntries(ctx context.Context, p ListEntriesParams) (*ListEntriesResult, error) {
	if p.ChannelID == "" {
		return nil, errors.New("channel_id required")
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	var cursorTS time.Time
	var cursorID string
	if p.Cursor != "" {
		var err error
		cursorTS, cursorID, err = DecodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*Entry
	for _, entry := range m.entries[p.ChannelID] {
		if p.Cursor != "" {
			after := entry.CreatedAt.After(cursorTS) ||
				(entry.CreatedAt.Equal(cursorTS) && entry.ID > cursorID)
			if !after {
				continue
			}
		}
		e := *entry
		entries = append(entries, &e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	result := &ListEntriesResult{}
	if len(entries) > p.Limit {
		result.HasMore = true
		entries = entries[:p.Limit]
	}
	result.Entries = entries
	if result.HasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		result.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}
	return result, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
