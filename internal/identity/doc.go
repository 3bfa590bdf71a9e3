// Package identity handles account registration, login and session tokens.
//
// Registration hashes the password with bcrypt and issues the account's
// one-time pairing code at creation, so every account is claimable the
// moment it exists. Login returns an HS256 JWT whose "sub" claim carries
// the account ID; Authenticate turns such a token back into the account.
package identity
