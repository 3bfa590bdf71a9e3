// ABOUTME: Pairing manager for referral-code issuance and partner claims
// ABOUTME: Generates unique short codes and drives the atomic claim through the store

package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/pairlink/internal/store"
)

const (
	// codeLength is the length of issued pairing codes. 8 chars over a
	// 36-symbol alphabet gives ~41 bits, plenty for a code that is used
	// once and guarded by a UNIQUE column anyway.
	codeLength = 8

	// maxIssueAttempts bounds the collision retry loop
	maxIssueAttempts = 5
)

// codeAlphabet matches the uppercase base36 codes users already share aloud
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrCodeExhausted is returned when code generation keeps colliding.
// Practically unreachable; it exists so a collision is never silently accepted.
var ErrCodeExhausted = errors.New("could not issue a unique pairing code")

// CodeStore defines what the manager needs from storage
type CodeStore interface {
	GetAccountByCode(ctx context.Context, code string) (*store.Account, error)
	ClaimPartner(ctx context.Context, callerID, code string) (*store.Account, error)
}

// Manager owns referral-code issuance and the claim operation that links
// two accounts. Claims are atomic: the store transaction reads and writes
// both partner fields as a single unit.
type Manager struct {
	store  CodeStore
	logger *slog.Logger
}

// New creates a pairing manager. Pass nil logger for default.
func New(codeStore CodeStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  codeStore,
		logger: logger.With("component", "pairing"),
	}
}

// IssueCode generates a pairing code not currently held by any account.
// Collisions are detected against the store and retried with a fresh code;
// the accounts table's UNIQUE constraint backstops the race between check
// and persist (store.ErrDuplicateCode tells the caller to call again).
func (m *Manager) IssueCode(ctx context.Context) (string, error) {
	for attempt := range maxIssueAttempts {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}

		_, err = m.store.GetAccountByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking code uniqueness: %w", err)
		}

		m.logger.Warn("pairing code collision, retrying", "attempt", attempt+1)
	}
	return "", ErrCodeExhausted
}

// Claim links the caller to the account holding code. The code is
// normalized (trimmed, uppercased) before lookup since users type it by
// hand. Error outcomes:
//
//   - store.ErrCodeNotFound: no account holds the code
//   - store.ErrSelfClaim: the code belongs to the caller
//   - store.ErrAlreadyPaired: either side already has a partner
//
// On success the returned account is the new partner, and the channel for
// the pair is addressable from both sides.
func (m *Manager) Claim(ctx context.Context, callerID, code string) (*store.Account, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, store.ErrCodeNotFound
	}

	partner, err := m.store.ClaimPartner(ctx, callerID, code)
	if err != nil {
		m.logger.Debug("claim rejected", "caller", callerID, "error", err)
		return nil, err
	}

	m.logger.Info("claim succeeded", "caller", callerID, "partner", partner.ID)
	return partner, nil
}

// NormalizeCode canonicalizes user-entered pairing codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// randomCode returns a cryptographically random code of length n, each
// symbol drawn uniformly from codeAlphabet. Bytes at or above the largest
// multiple of the alphabet size are rejected and redrawn; a plain modulo
// would favor the symbols below 256 mod 36.
func randomCode(n int) (string, error) {
	const limit = 256 - 256%len(codeAlphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
