// Package store provides persistent storage for pairlink using SQLite.
//
// # Architecture
//
// The package exposes a single Store interface implemented twice:
//
//   - SQLiteStore: production implementation (modernc.org/sqlite)
//   - MockStore: in-memory implementation for tests
//
// # Data Models
//
//   - Account: registered user with a unique, immutable pairing code and a
//     nullable partner ID that is set exactly once by ClaimPartner
//   - Entry: immutable message or ping in a channel's append-only log
//
// # Pairing
//
// ClaimPartner is the one operation that mutates shared state under
// contention. It reads both accounts and writes both partner IDs inside a
// single transaction with guarded UPDATEs; concurrent claims against the
// same code or caller cannot both succeed.
//
// # Ordering
//
// The store assigns every entry's timestamp at append time and guarantees
// assigned timestamps are strictly increasing. Reads are ordered by
// (created_at, entry_id), and cursors (EncodeCursor/DecodeCursor) make
// subscriptions restartable without loss.
package store
