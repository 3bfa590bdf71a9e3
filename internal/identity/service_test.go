// ABOUTME: Tests for account registration, login and token verification
// ABOUTME: Uses the in-memory mock store and a real pairing code issuer

package identity

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/pairlink/internal/pairing"
	"github.com/2389/pairlink/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MockStore) {
	t.Helper()
	mock := store.NewMockStore()
	tokens := NewTokens([]byte("test-secret"), time.Hour)
	svc := NewService(mock, pairing.New(mock, nil), tokens, nil)
	return svc, mock
}

func TestService_Register(t *testing.T) {
	svc, _ := newTestService(t)

	account, err := svc.Register(t.Context(), "Alice@Example.com", "correct horse battery")
	require.NoError(t, err)

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "alice@example.com", account.Email, "email should be normalized")
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), account.PairingCode)
	assert.Nil(t, account.PartnerID)
	assert.NotEqual(t, "correct horse battery", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("correct horse battery")))
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"missing at sign", "alice.example.com", "long enough pass", ErrInvalidEmail},
		{"missing domain dot", "alice@localhost", "long enough pass", ErrInvalidEmail},
		{"empty email", "", "long enough pass", ErrInvalidEmail},
		{"short password", "alice@example.com", "short", ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(t.Context(), tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(t.Context(), "alice@example.com", "first password")
	require.NoError(t, err)

	_, err = svc.Register(t.Context(), "ALICE@example.com", "second password")
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestService_RegisterUniquePairingCodes(t *testing.T) {
	svc, _ := newTestService(t)

	codes := make(map[string]bool)
	for i := range 20 {
		account, err := svc.Register(t.Context(), "user"+string(rune('a'+i))+"@example.com", "long enough pass")
		require.NoError(t, err)
		assert.False(t, codes[account.PairingCode], "pairing code %s issued twice", account.PairingCode)
		codes[account.PairingCode] = true
	}
}

func TestService_Login(t *testing.T) {
	svc, _ := newTestService(t)

	registered, err := svc.Register(t.Context(), "alice@example.com", "correct horse battery")
	require.NoError(t, err)

	account, token, err := svc.Login(t.Context(), "alice@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
	assert.NotEmpty(t, token)
}

func TestService_LoginFailures(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(t.Context(), "alice@example.com", "correct horse battery")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "alice@example.com", "wrong password here"},
		{"unknown email", "nobody@example.com", "correct horse battery"},
		{"empty password", "alice@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(t.Context(), tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := newTestService(t)

	registered, err := svc.Register(t.Context(), "alice@example.com", "correct horse battery")
	require.NoError(t, err)

	_, token, err := svc.Login(t.Context(), "alice@example.com", "correct horse battery")
	require.NoError(t, err)

	account, err := svc.Authenticate(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
}

func TestService_AuthenticateRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(t.Context(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
