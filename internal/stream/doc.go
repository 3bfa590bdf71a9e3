// Package stream is the append and subscribe surface over a channel's
// entry log.
//
// Appends validate membership and body rules, persist through the store
// (which assigns IDs and strictly increasing timestamps) and then fan out
// to live subscribers via an in-memory broadcaster. Subscriptions replay
// from an opaque cursor before switching to the live tail, delivering in
// non-decreasing (timestamp, entry ID) order and never leaking entries
// from another channel.
package stream
