// Package api exposes the pairlink HTTP surface: JSON endpoints for
// registration, login, pairing and the message stream, plus a Server-Sent
// Events feed backed by a sync session.
//
// # Endpoints
//
//   - POST /api/register     create an account (returns its pairing code)
//   - POST /api/login        password login, returns a bearer token
//   - GET  /api/me           the authenticated account
//   - POST /api/claim        claim a partner's pairing code
//   - POST /api/send         append a message to the pair channel
//   - POST /api/ping         append an attention ping
//   - GET  /api/entries      paginated history with opaque cursors
//   - GET  /api/stream       SSE: backfill from ?cursor= then live entries
//   - GET  /health           liveness probe, no auth
//
// All /api endpoints except register and login require an Authorization
// bearer token issued by login. Domain errors map to stable HTTP statuses
// with a JSON {"error": ...} body.
package api
