// ABOUTME: Store interface and data types for pairlink persistence
// ABOUTME: Defines Account, Entry structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateCode is returned when inserting a pairing code that another
// account already holds. Callers retry with a fresh code.
var ErrDuplicateCode = errors.New("pairing code already in use")

// ErrDuplicateEmail is returned when registering an email that is already taken
var ErrDuplicateEmail = errors.New("email already registered")

// Pairing claim errors. ClaimPartner resolves to exactly one of these or succeeds.
var (
	ErrCodeNotFound  = errors.New("pairing code not found")
	ErrSelfClaim     = errors.New("cannot claim your own pairing code")
	ErrAlreadyPaired = errors.New("account already paired")
)

// ErrUnpaired is returned when an operation requires a partner and the
// account has none.
var ErrUnpaired = errors.New("account is not paired")

// Append validation errors, surfaced by the stream layer.
var (
	ErrNotChannelMember = errors.New("sender is not a channel participant")
	ErrEmptyBody        = errors.New("message body is empty")
)

// Account represents a registered user.
// PartnerID is null until the account is paired and is set exactly once;
// there is no un-pairing operation.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	PairingCode  string
	PartnerID    *string
	CreatedAt    time.Time
}

// Paired reports whether the account has a partner.
func (a *Account) Paired() bool {
	return a.PartnerID != nil && *a.PartnerID != ""
}

// EntryKind constants for channel entries
const (
	EntryKindMessage = "message" // Text message with a body
	EntryKindPing    = "ping"    // Attention ping, no body
)

// Entry is a single immutable record in a channel's stream: a chat message
// or an attention ping. CreatedAt is assigned by the store at append time
// and is the sole ordering authority, never a client clock.
type Entry struct {
	ID        string
	ChannelID string
	Kind      string // "message" or "ping"
	SenderID  string
	Body      string // empty for pings
	CreatedAt time.Time
}

// ListEntriesParams specifies the parameters for reading back a channel's entries.
type ListEntriesParams struct {
	ChannelID string // Required: the channel to read
	Cursor    string // Opaque cursor from a previous page; empty means from the beginning
	Limit     int    // 1-500, defaults to 100
}

// ListEntriesResult contains one page of a channel's entries in
// (created_at, entry_id) order.
type ListEntriesResult struct {
	Entries    []*Entry
	NextCursor string // Cursor for the next page, empty if no more
	HasMore    bool
}

// Store defines the interface for account and entry persistence
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByCode(ctx context.Context, code string) (*Account, error)
	ListAccounts(ctx context.Context, limit int) ([]*Account, error)

	// ClaimPartner atomically links the caller to the account holding code.
	// The read of both accounts' partner state and the write of both
	// partner IDs happen inside a single transaction; under concurrent
	// claims exactly one wins and the loser observes ErrAlreadyPaired.
	ClaimPartner(ctx context.Context, callerID, code string) (*Account, error)

	// Entries (append-only, per-channel ordered log)
	AppendEntry(ctx context.Context, entry *Entry) error
	ListEntries(ctx context.Context, params ListEntriesParams) (*ListEntriesResult, error)

	// Close releases any resources held by the store
	Close() error
}
