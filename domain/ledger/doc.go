// Package ledger implements the service marketplace ledger: a registry of
// services, escrowed requests and sealed (commit-reveal) offers, settled by
// paying one revealed offer out of escrow and refunding the remainder.
//
// The ledger is single-writer and deterministic. It performs no I/O and
// holds no locks; callers serialize access (see package service). Every
// operation either applies completely and returns its events, or fails
// and leaves the state untouched.
package ledger
