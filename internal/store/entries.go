// ABOUTME: Channel entry log backed by the entries table
// ABOUTME: Store-assigned timestamps, cursor pagination, per-channel ordered reads

package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timestampLayout is the TEXT encoding for created_at columns and cursors.
// Fixed width, always UTC: RFC3339Nano trims trailing zeros from the
// fraction, which makes lexicographic order diverge from temporal order
// (".12Z" sorts after ".125Z"), and SQLite compares these columns as
// strings. Nine fixed fraction digits keep string order equal to time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// AppendEntry persists an entry. The store assigns the ID (if unset) and
// always assigns CreatedAt: the append time is the ordering authority, so a
// caller-supplied timestamp is never trusted. Assigned timestamps are
// strictly increasing across the store.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = s.nextTimestamp()

	query := `
		INSERT INTO entries (entry_id, channel_id, kind, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ChannelID,
		entry.Kind,
		entry.SenderID,
		nullString(entry.Body),
		entry.CreatedAt.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	s.logger.Debug("appended entry",
		"entry_id", entry.ID,
		"channel_id", entry.ChannelID,
		"kind", entry.Kind,
	)
	return nil
}

// nextTimestamp returns the current UTC time, nudged forward if the clock
// has not advanced since the previous append.
func (s *SQLiteStore) nextTimestamp() time.Time {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	now := time.Now().UTC()
	if !now.After(s.lastAppend) {
		now = s.lastAppend.Add(time.Nanosecond)
	}
	s.lastAppend = now
	return now
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// EncodeCursor creates an opaque cursor string from a timestamp and entry ID.
// Format is base64(timestamp|entry_id) with the fixed-width timestamp layout.
func EncodeCursor(ts time.Time, id string) string {
	data := fmt.Sprintf("%s|%s", ts.UTC().Format(timestampLayout), id)
	return base64.StdEncoding.EncodeToString([]byte(data))
}

// CursorFor returns the cursor positioned at the given entry. A subscription
// restarted from it resumes strictly after the entry.
func CursorFor(entry *Entry) string {
	return EncodeCursor(entry.CreatedAt, entry.ID)
}

// DecodeCursor parses an opaque cursor string into a timestamp and entry ID.
// Returns an error if the cursor is invalid.
func DecodeCursor(cursor string) (time.Time, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid cursor format: expected timestamp|entry_id")
	}

	ts, err := time.Parse(timestampLayout, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return ts, parts[1], nil
}

// ListEntries retrieves entries for a channel with cursor pagination.
// Entries are returned in (created_at, entry_id) order, oldest first. The
// WHERE channel_id clause is the filtering boundary: a subscriber can never
// be handed a row from another channel.
func (s *SQLiteStore) ListEntries(ctx context.Context, p ListEntriesParams) (*ListEntriesResult, error) {
	if p.ChannelID == "" {
		return nil, errors.New("channel_id required")
	}

	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	var cursorTS time.Time
	var cursorID string
	if p.Cursor != "" {
		var err error
		cursorTS, cursorID, err = DecodeCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
	}

	var args []any
	query := `
		SELECT entry_id, channel_id, kind, sender_id, body, created_at
		FROM entries
		WHERE channel_id = ?
	`
	args = append(args, p.ChannelID)

	if p.Cursor != "" {
		query += ` AND (created_at > ? OR (created_at = ? AND entry_id > ?))`
		ts := cursorTS.UTC().Format(timestampLayout)
		args = append(args, ts, ts, cursorID)
	}

	query += ` ORDER BY created_at ASC, entry_id ASC`

	// Fetch limit+1 to detect if there are more results
	query += ` LIMIT ?`
	args = append(args, p.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var body *string
		var createdAtStr string

		if err := rows.Scan(
			&entry.ID,
			&entry.ChannelID,
			&entry.Kind,
			&entry.SenderID,
			&body,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}

		if body != nil {
			entry.Body = *body
		}

		entry.CreatedAt, err = time.Parse(timestampLayout, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entry rows: %w", err)
	}

	hasMore := len(entries) > p.Limit
	if hasMore {
		entries = entries[:p.Limit]
	}

	result := &ListEntriesResult{
		Entries: entries,
		HasMore: hasMore,
	}

	if hasMore && len(entries) > 0 {
		last := entries[len(entries)-1]
		result.NextCursor = EncodeCursor(last.CreatedAt, last.ID)
	}

	return result, nil
}
