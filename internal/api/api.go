// ABOUTME: HTTP JSON handlers for accounts, pairing and the message stream
// ABOUTME: Exposes the SSE /api/stream endpoint backed by a sync session

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/2389/pairlink/internal/channel"
	"github.com/2389/pairlink/internal/identity"
	"github.com/2389/pairlink/internal/pairing"
	"github.com/2389/pairlink/internal/session"
	"github.com/2389/pairlink/internal/store"
	"github.com/2389/pairlink/internal/stream"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

var validate = validator.New()

// RegisterRequest is the JSON request body for POST /api/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ClaimRequest is the JSON request body for POST /api/claim.
type ClaimRequest struct {
	Code string `json:"code" validate:"required"`
}

// SendRequest is the JSON request body for POST /api/send.
type SendRequest struct {
	Body string `json:"body" validate:"required"`
}

// AccountResponse is the JSON shape of an account.
type AccountResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	PairingCode string  `json:"pairing_code"`
	PartnerID   *string `json:"partner_id"`
	CreatedAt   string  `json:"created_at"`
}

// LoginResponse is the JSON response for POST /api/login.
type LoginResponse struct {
	Account AccountResponse `json:"account"`
	Token   string          `json:"token"`
}

// ClaimResponse is the JSON response for POST /api/claim.
type ClaimResponse struct {
	PartnerID    string `json:"partner_id"`
	PartnerEmail string `json:"partner_email"`
	ChannelID    string `json:"channel_id"`
}

// EntryResponse is the JSON shape of a stream entry.
type EntryResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body,omitempty"`
	CreatedAt string `json:"created_at"`
	Cursor    string `json:"cursor"`
}

// EntriesResponse is the JSON response for GET /api/entries.
type EntriesResponse struct {
	Entries    []EntryResponse `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

// Server wires the domain services into an HTTP handler.
type Server struct {
	identity *identity.Service
	pairing  *pairing.Manager
	resolver *channel.Resolver
	stream   *stream.Service
	store    store.Store
	logger   *slog.Logger
}

// NewServer creates the API server. Pass nil logger for default.
func NewServer(ident *identity.Service, pairer *pairing.Manager, resolver *channel.Resolver, streamSvc *stream.Service, st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		identity: ident,
		pairing:  pairer,
		resolver: resolver,
		stream:   streamSvc,
		store:    st,
		logger:   logger.With("component", "api"),
	}
}

// Handler builds the route table. Everything under /api except register
// and login requires a bearer token.
func (s *Server) Handler() http.Handler {
	authMiddleware := AuthMiddleware(s.identity)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.Handle("GET /api/me", authMiddleware(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /api/claim", authMiddleware(http.HandlerFunc(s.handleClaim)))
	mux.Handle("POST /api/send", authMiddleware(http.HandlerFunc(s.handleSend)))
	mux.Handle("POST /api/ping", authMiddleware(http.HandlerFunc(s.handlePing)))
	mux.Handle("GET /api/entries", authMiddleware(http.HandlerFunc(s.handleEntries)))
	mux.Handle("GET /api/stream", authMiddleware(http.HandlerFunc(s.handleStream)))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := s.identity.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.domainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, accountResponse(account))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	account, token, err := s.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.domainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, LoginResponse{
		Account: accountResponse(account),
		Token:   token,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account := MustFromContext(r.Context())
	s.writeJSON(w, http.StatusOK, accountResponse(account))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	account := MustFromContext(r.Context())

	var req ClaimRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	partner, err := s.pairing.Claim(r.Context(), account.ID, req.Code)
	if err != nil {
		s.domainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ClaimResponse{
		PartnerID:    partner.ID,
		PartnerEmail: partner.Email,
		ChannelID:    string(channel.IDFor(account.ID, partner.ID)),
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	account := MustFromContext(r.Context())

	var req SendRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	channelID, err := s.resolver.Resolve(r.Context(), account.ID)
	if err != nil {
		s.domainError(w, err)
		return
	}

	entry, err := s.stream.Append(r.Context(), channelID, account.ID, store.EntryKindMessage, req.Body)
	if err != nil {
		s.domainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, entryResponse(entry))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	account := MustFromContext(r.Context())

	channelID, err := s.resolver.Resolve(r.Context(), account.ID)
	if err != nil {
		s.domainError(w, err)
		return
	}

	entry, err := s.stream.Append(r.Context(), channelID, account.ID, store.EntryKindPing, "")
	if err != nil {
		s.domainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, entryResponse(entry))
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	account := MustFromContext(r.Context())

	channelID, err := s.resolver.Resolve(r.Context(), account.ID)
	if err != nil {
		s.domainError(w, err)
		return
	}

	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}

	result, err := s.store.ListEntries(r.Context(), store.ListEntriesParams{
		ChannelID: string(channelID),
		Cursor:    r.URL.Query().Get("cursor"),
		Limit:     limit,
	})
	if err != nil {
		s.domainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, EntriesResponse{
		Entries: lo.Map(result.Entries, func(entry *store.Entry, _ int) EntryResponse {
			return entryResponse(entry)
		}),
		NextCursor: result.NextCursor,
		HasMore:    result.HasMore,
	})
}

// handleStream serves GET /api/stream as Server-Sent Events. A sync session
// backs the feed: backfill from the cursor query parameter, then live
// entries until the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	account := MustFromContext(r.Context())

	// Check streaming support before opening the session (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess, err := session.Open(r.Context(), s.resolver, s.stream, account.ID, r.URL.Query().Get("cursor"), s.logger)
	if err != nil {
		s.domainError(w, err)
		return
	}
	defer sess.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "connected", map[string]string{"channel_id": string(sess.ChannelID())})
	flusher.Flush()

	// Keepalive comments stop idle proxies from dropping the connection
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	// The session view only ever grows at the tail, so emitting the
	// unsent suffix after each update signal preserves order.
	written := 0
	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case _, ok := <-sess.Updates():
			if !ok {
				return
			}
			entries := sess.Entries()
			for _, entry := range entries[written:] {
				s.writeSSEEvent(w, "entry", entryResponse(entry))
			}
			written = len(entries)
			flusher.Flush()
		}
	}
}

// decodeAndValidate parses the JSON body into req and validates it,
// writing the error response itself. Returns false if the request is bad.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// domainError maps domain sentinel errors to HTTP statuses.
func (s *Server) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, store.ErrDuplicateEmail):
		s.sendJSONError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, store.ErrCodeNotFound):
		s.sendJSONError(w, http.StatusNotFound, "pairing code not found")
	case errors.Is(err, store.ErrSelfClaim):
		s.sendJSONError(w, http.StatusBadRequest, "cannot claim your own pairing code")
	case errors.Is(err, store.ErrAlreadyPaired):
		s.sendJSONError(w, http.StatusConflict, "account is already paired")
	case errors.Is(err, store.ErrUnpaired):
		s.sendJSONError(w, http.StatusConflict, "account is not paired")
	case errors.Is(err, store.ErrEmptyBody):
		s.sendJSONError(w, http.StatusBadRequest, "message body is empty")
	case errors.Is(err, store.ErrNotChannelMember):
		s.sendJSONError(w, http.StatusForbidden, "not a member of this channel")
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func accountResponse(account *store.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Email:       account.Email,
		PairingCode: account.PairingCode,
		PartnerID:   account.PartnerID,
		CreatedAt:   account.CreatedAt.Format(time.RFC3339Nano),
	}
}

func entryResponse(entry *store.Entry) EntryResponse {
	return EntryResponse{
		ID:        entry.ID,
		Kind:      entry.Kind,
		SenderID:  entry.SenderID,
		Body:      entry.Body,
		CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
		Cursor:    store.CursorFor(entry),
	}
}
