package ledger

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Commitment returns keccak256(abi.encodePacked(uint256(price), uint256(nonce))),
// the value a provider submits before revealing (price, nonce).
func Commitment(price Amount, nonce uint64) Hash {
	var buf [64]byte
	binary.BigEndian.PutUint64(buf[24:32], uint64(price))
	binary.BigEndian.PutUint64(buf[56:64], nonce)

	d := sha3.NewLegacyKeccak256()
	d.Write(buf[:])

	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// Verify reports whether (price, nonce) opens commitment.
func Verify(commitment Hash, price Amount, nonce uint64) bool {
	return Commitment(price, nonce) == commitment
}
