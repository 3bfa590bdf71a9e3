// ABOUTME: Tests for HS256 session token issue and verify
// ABOUTME: Covers round-trip, expiry, wrong secret, missing sub, alg abuse

package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)

	token, err := tokens.Issue("account-1")
	require.NoError(t, err)

	accountID, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "account-1", accountID)
}

func TestTokens_Expired(t *testing.T) {
	tokens := NewTokens([]byte("secret"), -time.Minute)

	token, err := tokens.Issue("account-1")
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokens_WrongSecret(t *testing.T) {
	issuer := NewTokens([]byte("secret-a"), time.Hour)
	verifier := NewTokens([]byte("secret-b"), time.Hour)

	token, err := issuer.Issue("account-1")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_MissingSubClaim(t *testing.T) {
	secret := []byte("secret")
	tokens := NewTokens(secret, time.Hour)

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := raw.SignedString(secret)
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestTokens_RejectsUnsignedAlg(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)

	raw := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "account-1"})
	signed, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Garbage(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)

	for _, bad := range []string{"", "abc", "a.b.c"} {
		_, err := tokens.Verify(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", bad)
	}
}
