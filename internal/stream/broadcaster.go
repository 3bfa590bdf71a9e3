// ABOUTME: In-memory fan-out broadcaster for live channel entries
// ABOUTME: Publishes appended entries to all subscribers of a channel ID

package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/pairlink/internal/channel"
	"github.com/2389/pairlink/internal/store"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub for appended entries. Subscribers
// register for one channel ID and receive entries as they are persisted.
// Keying by channel ID is part of the isolation boundary: a subscriber's Go
// channel is only ever handed entries published under its own key.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[channel.ID]map[string]chan *store.Entry // channelID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[channel.ID]map[string]chan *store.Entry),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for live entries on the given channel.
// Returns a receive channel and a subscription ID for later unsubscription.
// The subscription is automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, ch channel.ID) (<-chan *store.Entry, string) {
	subID := uuid.New().String()
	out := make(chan *store.Entry, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[ch]; !ok {
		b.subscribers[ch] = make(map[string]chan *store.Entry)
	}
	b.subscribers[ch][subID] = out
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "channel_id", ch, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(ch, subID)
	}()

	return out, subID
}

// Publish sends an entry to all subscribers of the given channel.
// Non-blocking: the entry is dropped for subscribers whose channels are
// full; a dropped entry is recovered by restarting from a cursor.
//
// The sends happen under the read lock. They never block, and Unsubscribe
// needs the write lock to close a subscriber channel, so Publish can never
// send on a channel that has been closed out from under it.
func (b *Broadcaster) Publish(ch channel.ID, entry *store.Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, out := range b.subscribers[ch] {
		select {
		case out <- entry:
			// Sent
		default:
			b.logger.Debug("dropped entry for slow subscriber",
				"channel_id", ch,
				"entry_id", entry.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch channel.ID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[ch]
	if !ok {
		return
	}

	out, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(out)

	if len(subs) == 0 {
		delete(b.subscribers, ch)
	}

	b.logger.Debug("subscriber removed", "channel_id", ch, "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch, subs := range b.subscribers {
		for subID, out := range subs {
			close(out)
			delete(subs, subID)
		}
		delete(b.subscribers, ch)
	}

	b.logger.Debug("broadcaster closed")
}
