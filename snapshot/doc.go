// Package snapshot persists a complete copy of the ledger together with
// the last command sequence it reflects. Recovery loads the snapshot and
// replays only the entry WAL records that come after it.
package snapshot
