// Package session provides the per-client sync session: a live, ordered,
// de-duplicated view of the account's pair channel.
//
// # Overview
//
// A Session resolves the account's channel, subscribes to its entry stream
// and folds backfill plus live entries into one slice ordered by
// (timestamp, entry ID). Both partners' views converge to the same
// sequence regardless of delivery order.
//
//	sess, err := session.Open(ctx, resolver, streamSvc, accountID, "", logger)
//	defer sess.Close()
//
// Key operations:
//
//   - Send(ctx, body): append a message (whitespace-only is a no-op)
//   - NotifyPartner(ctx): append an attention ping
//   - Entries(): snapshot of the current ordered view
//   - Updates(): coalescing change notifications, closed on shutdown
//
// # Merging
//
// The internal merge loop drops entry IDs it has already delivered (a
// dedupe cache absorbs the backfill/live overlap) and inserts the rest at
// their sorted position, so a late-arriving entry still lands where its
// timestamp says.
package session
