// ABOUTME: Sync session: one client's live, ordered view of its pair channel
// ABOUTME: Merges backfill and live entries by (timestamp, ID), not arrival

package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/pairlink/internal/channel"
	"github.com/2389/pairlink/internal/dedupe"
	"github.com/2389/pairlink/internal/store"
)

const (
	// Entry IDs are remembered long enough to cover any realistic
	// backfill/live overlap window.
	dedupeTTL     = 5 * time.Minute
	dedupeMaxSize = 10000
)

// Streamer is the slice of the stream service a session uses.
type Streamer interface {
	Append(ctx context.Context, ch channel.ID, senderID, kind, body string) (*store.Entry, error)
	Subscribe(ctx context.Context, ch channel.ID, cursor string) (<-chan *store.Entry, error)
}

// ChannelResolver maps an account to its pair channel.
type ChannelResolver interface {
	Resolve(ctx context.Context, accountID string) (channel.ID, error)
}

// Session is one client's stateful view of its pair channel: an ordered,
// de-duplicated slice of entries kept current by a background merge loop.
// The view converges to the same sequence on both sides of the pair no
// matter how entries arrive.
type Session struct {
	accountID string
	channelID channel.ID
	stream    Streamer
	seen      *dedupe.Cache
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	entries []*store.Entry
	updates chan struct{}
	closed  bool
}

// Open resolves the account's pair channel and starts a session over it,
// replaying from cursor (or the beginning if empty). Unpaired accounts get
// store.ErrUnpaired.
//
// The session keeps running until Close or parent ctx cancellation.
func Open(ctx context.Context, resolver ChannelResolver, streamer Streamer, accountID, cursor string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	channelID, err := resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	feed, err := streamer.Subscribe(sessCtx, channelID, cursor)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Session{
		accountID: accountID,
		channelID: channelID,
		stream:    streamer,
		seen:      dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:    logger.With("component", "session", "account_id", accountID),
		cancel:    cancel,
		done:      make(chan struct{}),
		updates:   make(chan struct{}, 1),
	}

	go s.mergeLoop(feed)

	s.logger.Debug("session opened", "channel_id", channelID)
	return s, nil
}

// mergeLoop folds the feed into the ordered view until the feed closes,
// then closes the update channel. It is the only writer of both.
func (s *Session) mergeLoop(feed <-chan *store.Entry) {
	defer close(s.done)

	for entry := range feed {
		if s.seen.Seen(entry.ID) {
			continue
		}

		s.mu.Lock()
		s.insertLocked(entry)
		updates := s.updates
		s.mu.Unlock()

		// Coalescing signal: one pending notification is enough
		select {
		case updates <- struct{}{}:
		default:
		}
	}

	s.mu.Lock()
	close(s.updates)
	s.mu.Unlock()
}

// insertLocked places entry at its sorted position by (CreatedAt, ID).
// Entries usually arrive in order, so the search lands at the tail.
func (s *Session) insertLocked(entry *store.Entry) {
	i := sort.Search(len(s.entries), func(i int) bool {
		e := s.entries[i]
		if !e.CreatedAt.Equal(entry.CreatedAt) {
			return e.CreatedAt.After(entry.CreatedAt)
		}
		return e.ID > entry.ID
	})
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry
}

// Send appends a message from this session's account. Whitespace-only
// bodies are a silent no-op. Returns once the append is durable.
func (s *Session) Send(ctx context.Context, body string) error {
	_, err := s.stream.Append(ctx, s.channelID, s.accountID, store.EntryKindMessage, body)
	if errors.Is(err, store.ErrEmptyBody) {
		return nil
	}
	return err
}

// NotifyPartner appends an attention ping from this session's account.
func (s *Session) NotifyPartner(ctx context.Context) error {
	_, err := s.stream.Append(ctx, s.channelID, s.accountID, store.EntryKindPing, "")
	return err
}

// Entries returns a snapshot of the ordered view. The slice is the
// caller's to keep; later merges do not mutate it.
func (s *Session) Entries() []*store.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*store.Entry, len(s.entries))
	copy(snapshot, s.entries)
	return snapshot
}

// Updates returns the change-notification channel. It receives a signal
// after entries merge into the view (signals coalesce) and is closed when
// the session ends.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// ChannelID returns the pair channel this session is attached to.
func (s *Session) ChannelID() channel.ID {
	return s.channelID
}

// Close tears the session down: the subscription is cancelled, the merge
// loop drains, and the update channel closes. Safe to call more than once
// and from multiple goroutines; no signals are delivered after it returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.seen.Close()
	s.logger.Debug("session closed", "channel_id", s.channelID)
}
