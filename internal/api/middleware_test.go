// ABOUTME: Tests for the bearer-token auth middleware
// ABOUTME: Covers header parsing, rejection paths, context propagation

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pairlink/internal/identity"
	"github.com/2389/pairlink/internal/pairing"
	"github.com/2389/pairlink/internal/store"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"no token", "Bearer ", "", true},
		{"lowercase scheme", "bearer abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if tt.wantErr {
				assert.NotEmpty(t, errMsg)
				return
			}
			assert.Empty(t, errMsg)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	mock := store.NewMockStore()
	tokens := identity.NewTokens([]byte("test-secret"), time.Hour)
	ident := identity.NewService(mock, pairing.New(mock, nil), tokens, nil)

	account, err := ident.Register(t.Context(), "alice@example.com", "long enough pass")
	require.NoError(t, err)
	_, token, err := ident.Login(t.Context(), "alice@example.com", "long enough pass")
	require.NoError(t, err)

	var gotAccount *store.Account
	handler := AuthMiddleware(ident)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		gotAccount = nil
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotAccount)
		assert.Equal(t, account.ID, gotAccount.ID)
	})

	t.Run("missing header", func(t *testing.T) {
		gotAccount = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, gotAccount)
	})

	t.Run("garbage token", func(t *testing.T) {
		gotAccount = nil
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, gotAccount)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := identity.NewTokens([]byte("test-secret"), -time.Minute)
		staleToken, err := expired.Issue(account.ID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+staleToken)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
