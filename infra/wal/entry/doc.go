// Package entry implements the entry write-ahead log: every command is
// framed, checksummed and appended here before it touches the ledger, so
// the ledger can be rebuilt by replaying the log in sequence order.
//
// Frame layout: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian,
// CRC over header and payload. Segments are named segment-%06d.wal.
package entry
