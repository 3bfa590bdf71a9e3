// Package channel derives the private channel shared by a pair of
// accounts. A channel is never stored: its ID is the two account IDs in
// lexical order, so both partners compute the same ID independently and
// the participants are always recoverable from it. That recoverability is
// the isolation boundary every read and write is checked against.
package channel
