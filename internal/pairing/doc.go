// Package pairing manages one-time pairing codes: short uppercase codes
// issued once per account and claimed at most once by exactly one other
// account. IssueCode generates and reserves a code; Claim normalizes user
// input and delegates the atomic partner swap to the store.
package pairing
