// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides account/entry persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// appendMu guards lastAppend so assigned timestamps never move backwards
	// even if the wall clock does.
	appendMu   sync.Mutex
	lastAppend time.Time
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// A writer in another process holding the lock surfaces as a wait, not
	// SQLITE_BUSY, so a cross-process claim loser re-reads committed state
	// the same way an in-process one does.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// The claim transaction is the one write path that must serialize across
	// callers. SQLite has a single writer anyway; keeping the pool at one
	// connection means a losing claim waits for the winner to commit and then
	// reads fresh state instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			pairing_code  TEXT NOT NULL UNIQUE,
			partner_id    TEXT REFERENCES accounts(id),
			created_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_accounts_code ON accounts(pairing_code);
		CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

		CREATE TABLE IF NOT EXISTS entries (
			entry_id   TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			sender_id  TEXT NOT NULL,
			body       TEXT,
			created_at TEXT NOT NULL,

			CHECK (kind IN ('message', 'ping'))
		);

		CREATE INDEX IF NOT EXISTS idx_entries_channel_created
			ON entries(channel_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "UNIQUE constraint failed") &&
		!strings.Contains(errStr, "constraint failed") {
		return false
	}
	return column == "" || strings.Contains(errStr, column)
}

// CreateAccount inserts a new account. The pairing code must already be set;
// uniqueness is enforced by the schema. Returns ErrDuplicateEmail or
// ErrDuplicateCode on the corresponding UNIQUE violation so callers can
// distinguish "email taken" from "regenerate the code and retry".
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, pairing_code, partner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.PairingCode,
		account.PartnerID,
		account.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isConstraintViolation(err, "email") {
			return ErrDuplicateEmail
		}
		if isConstraintViolation(err, "pairing_code") {
			return ErrDuplicateCode
		}
		return fmt.Errorf("inserting account: %w", err)
	}

	s.logger.Debug("created account", "id", account.ID, "code", account.PairingCode)
	return nil
}

// GetAccount retrieves an account by ID.
// Returns ErrNotFound if the account doesn't exist.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return s.getAccountWhere(ctx, "id = ?", id)
}

// GetAccountByEmail retrieves an account by email.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.getAccountWhere(ctx, "email = ?", email)
}

// GetAccountByCode retrieves the account holding the given pairing code.
func (s *SQLiteStore) GetAccountByCode(ctx context.Context, code string) (*Account, error) {
	return s.getAccountWhere(ctx, "pairing_code = ?", code)
}

func (s *SQLiteStore) getAccountWhere(ctx context.Context, where string, arg any) (*Account, error) {
	query := `
		SELECT id, email, password_hash, pairing_code, partner_id, created_at
		FROM accounts
		WHERE ` + where

	return scanAccount(s.db.QueryRowContext(ctx, query, arg))
}

// rowScanner abstracts sql.Row and sql.Rows for scanAccount
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var account Account
	var partnerID sql.NullString
	var createdAtStr string

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.PairingCode,
		&partnerID,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	if partnerID.Valid {
		account.PartnerID = &partnerID.String
	}

	account.CreatedAt, err = time.Parse(timestampLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &account, nil
}

// ListAccounts retrieves accounts ordered by creation time.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListAccounts(ctx context.Context, limit int) ([]*Account, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, email, password_hash, pairing_code, partner_id, created_at
		FROM accounts
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	return accounts, nil
}

// ClaimPartner links the caller to the account holding code. The partner
// state of both accounts is read and written inside one transaction; the
// guarded UPDATEs re-check partner_id IS NULL at write time, so a claim that
// lost a race observes fresh state and fails with ErrAlreadyPaired rather
// than committing a partial link.
func (s *SQLiteStore) ClaimPartner(ctx context.Context, callerID, code string) (*Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT id, email, password_hash, pairing_code, partner_id, created_at
		FROM accounts
		WHERE `

	owner, err := scanAccount(tx.QueryRowContext(ctx, selectQuery+"pairing_code = ?", code))
	if err == ErrNotFound {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up code owner: %w", err)
	}

	if owner.ID == callerID {
		return nil, ErrSelfClaim
	}

	caller, err := scanAccount(tx.QueryRowContext(ctx, selectQuery+"id = ?", callerID))
	if err == ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up caller: %w", err)
	}

	if owner.Paired() || caller.Paired() {
		return nil, ErrAlreadyPaired
	}

	// Write both sides with a partner_id IS NULL guard. Zero rows affected
	// means another claim won between our read and this write.
	updateQuery := `UPDATE accounts SET partner_id = ? WHERE id = ? AND partner_id IS NULL`

	for _, pair := range []struct{ partnerID, accountID string }{
		{caller.ID, owner.ID},
		{owner.ID, caller.ID},
	} {
		result, err := tx.ExecContext(ctx, updateQuery, pair.partnerID, pair.accountID)
		if err != nil {
			return nil, fmt.Errorf("linking accounts: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("getting rows affected: %w", err)
		}
		if affected != 1 {
			return nil, ErrAlreadyPaired
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	owner.PartnerID = &caller.ID
	s.logger.Info("accounts paired", "caller", callerID, "partner", owner.ID)
	return owner, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
