// Package dedupe provides a time-bounded cache of delivered entry IDs so
// consumers can collapse the at-least-once overlap between a subscription's
// backfill and its live tail.
package dedupe
