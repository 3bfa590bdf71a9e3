// ABOUTME: Message stream service: validated appends and live subscriptions
// ABOUTME: Persist first, then fan out - the store is the source of truth

package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/pairlink/internal/channel"
	"github.com/2389/pairlink/internal/store"
)

// EntryStore defines what the stream service needs from storage
type EntryStore interface {
	AppendEntry(ctx context.Context, entry *store.Entry) error
	ListEntries(ctx context.Context, params store.ListEntriesParams) (*store.ListEntriesResult, error)
}

// Service is the append + subscribe surface over a channel's entry log.
// Appends are persisted before they are broadcast, so every entry a
// subscriber sees live is already durable and reachable by cursor.
type Service struct {
	store       EntryStore
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewService creates a stream service with its own broadcaster.
func NewService(entryStore EntryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       entryStore,
		broadcaster: NewBroadcaster(logger),
		logger:      logger.With("component", "stream"),
	}
}

// Append validates and persists an entry, then publishes it to live
// subscribers of the channel.
//
// Validation:
//   - senderID must be one of the channel's two participants
//     (store.ErrNotChannelMember)
//   - messages must have a non-empty body after trimming (store.ErrEmptyBody);
//     pings never carry a body
//
// The store assigns the entry ID and timestamp. Appends to different
// channels are fully independent.
func (s *Service) Append(ctx context.Context, ch channel.ID, senderID, kind, body string) (*store.Entry, error) {
	if !ch.Contains(senderID) {
		return nil, store.ErrNotChannelMember
	}

	switch kind {
	case store.EntryKindMessage:
		body = strings.TrimSpace(body)
		if body == "" {
			return nil, store.ErrEmptyBody
		}
	case store.EntryKindPing:
		body = ""
	default:
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}

	entry := &store.Entry{
		ChannelID: string(ch),
		Kind:      kind,
		SenderID:  senderID,
		Body:      body,
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending entry: %w", err)
	}

	s.broadcaster.Publish(ch, entry)

	s.logger.Debug("entry appended",
		"entry_id", entry.ID,
		"channel_id", ch,
		"kind", kind)
	return entry, nil
}

// Subscribe opens a live, restartable feed of the channel's entries:
// a backfill from cursor (or the beginning if empty) followed by live
// appends, each in non-decreasing (timestamp, entry ID) order.
//
// The live registration happens before the backfill query, so nothing
// appended in between is lost; the two portions can overlap at the cursor
// boundary instead, and the feed suppresses the overlap it can see locally.
// Across restarts delivery is still at-least-once, so consumers de-duplicate
// by entry ID.
//
// The feed closes when ctx is cancelled. Entries from any other channel
// never appear on it.
func (s *Service) Subscribe(ctx context.Context, ch channel.ID, cursor string) (<-chan *store.Entry, error) {
	// Validate the cursor up front so a bad one fails the call, not the feed
	if cursor != "" {
		if _, _, err := store.DecodeCursor(cursor); err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
	}

	live, subID := s.broadcaster.Subscribe(ctx, ch)
	out := make(chan *store.Entry, subscriberBufferSize)

	go func() {
		defer close(out)

		lastTS, lastID, ok := s.backfill(ctx, ch, cursor, out)
		if !ok {
			s.broadcaster.Unsubscribe(ch, subID)
			return
		}

		for entry := range live {
			// The broadcaster already keys by channel ID; re-checking here
			// keeps the filter a property of the feed itself.
			if entry.ChannelID != string(ch) {
				s.logger.Warn("dropping foreign entry from live feed",
					"entry_id", entry.ID,
					"entry_channel", entry.ChannelID,
					"subscribed_channel", ch)
				continue
			}
			// An entry published while the backfill query ran shows up on
			// both paths. Skipping anything at or before the backfill's
			// last position keeps the feed non-decreasing.
			if !after(entry, lastTS, lastID) {
				continue
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Debug("subscription opened", "channel_id", ch, "sub_id", subID)
	return out, nil
}

// backfill streams stored entries after cursor into out, page by page.
// Returns the (timestamp, entry ID) position of the last delivered entry and
// whether the backfill completed.
func (s *Service) backfill(ctx context.Context, ch channel.ID, cursor string, out chan<- *store.Entry) (time.Time, string, bool) {
	var lastTS time.Time
	var lastID string
	if cursor != "" {
		// Already validated in Subscribe
		lastTS, lastID, _ = store.DecodeCursor(cursor)
	}

	params := store.ListEntriesParams{
		ChannelID: string(ch),
		Cursor:    cursor,
		Limit:     200,
	}

	for {
		result, err := s.store.ListEntries(ctx, params)
		if err != nil {
			s.logger.Error("backfill failed", "channel_id", ch, "error", err)
			return lastTS, lastID, false
		}

		for _, entry := range result.Entries {
			select {
			case out <- entry:
				lastTS, lastID = entry.CreatedAt, entry.ID
			case <-ctx.Done():
				return lastTS, lastID, false
			}
		}

		if !result.HasMore {
			return lastTS, lastID, true
		}
		params.Cursor = result.NextCursor
	}
}

// after reports whether entry sorts strictly after the (ts, id) position.
func after(entry *store.Entry, ts time.Time, id string) bool {
	if entry.CreatedAt.After(ts) {
		return true
	}
	return entry.CreatedAt.Equal(ts) && entry.ID > id
}

// Close shuts down the live fan-out. In-flight subscriptions drain and close.
func (s *Service) Close() {
	s.broadcaster.Close()
}
