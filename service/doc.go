// Package service is the only write path into the marketplace ledger.
//
// Every command is sequenced, logged to the entry WAL, applied to the
// ledger and its events stored in the outbox, all under one lock. Reads
// share the lock. Recovery rebuilds the same state from the latest
// snapshot plus the WAL tail.
package service
