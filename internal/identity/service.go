// ABOUTME: Account registration and login with bcrypt password hashing
// ABOUTME: Every new account gets its pairing code at creation time

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/pairlink/internal/store"
)

// Email validation regex: local part, @, domain with at least one dot
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	minPasswordLength = 8

	// Retries for the pairing-code uniqueness race between IssueCode's
	// availability check and CreateAccount's UNIQUE constraint
	maxRegisterAttempts = 3
)

// dummyHash keeps login timing constant when the email is unknown.
// Hash of an unguessable throwaway value, never a real password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Identity errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// AccountStore is the slice of the store the identity service uses.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *store.Account) error
	GetAccount(ctx context.Context, id string) (*store.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*store.Account, error)
}

// CodeIssuer hands out fresh pairing codes.
type CodeIssuer interface {
	IssueCode(ctx context.Context) (string, error)
}

// Service registers accounts and authenticates logins.
type Service struct {
	accounts AccountStore
	codes    CodeIssuer
	tokens   *Tokens
	logger   *slog.Logger
}

// NewService creates an identity service. Pass nil logger for default.
func NewService(accounts AccountStore, codes CodeIssuer, tokens *Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		codes:    codes,
		tokens:   tokens,
		logger:   logger.With("component", "identity"),
	}
}

// Register creates a new account with a bcrypt password hash and a fresh
// pairing code. Emails are normalized to lower case and must be unique
// (store.ErrDuplicateEmail).
func (s *Service) Register(ctx context.Context, email, password string) (*store.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		code, err := s.codes.IssueCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("issuing pairing code: %w", err)
		}

		account := &store.Account{
			ID:           uuid.New().String(),
			Email:        email,
			PasswordHash: string(hash),
			PairingCode:  code,
			CreatedAt:    time.Now(),
		}

		err = s.accounts.CreateAccount(ctx, account)
		if errors.Is(err, store.ErrDuplicateCode) {
			// Another registration won the code between the availability
			// check and the insert; try a new one
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("account registered", "account_id", account.ID)
		return account, nil
	}

	return nil, fmt.Errorf("registering account: %w", store.ErrDuplicateCode)
}

// Login checks the password for the given email and returns the account
// with a fresh session token. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*store.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Dummy comparison to keep timing constant for unknown emails
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("looking up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	s.logger.Info("account logged in", "account_id", account.ID)
	return account, token, nil
}

// Authenticate verifies a session token and returns the account it names.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*store.Account, error) {
	accountID, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return account, nil
}
