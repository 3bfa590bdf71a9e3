// Package gateway assembles the pairlink server: it opens the SQLite
// store, wires the pairing, identity, channel and stream services into the
// HTTP API and manages the server lifecycle with graceful shutdown.
package gateway
