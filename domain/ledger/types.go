package ledger

import (
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
)

// Address identifies an account, EVM style: "0x" followed by 40 hex digits.
type Address string

// ParseAddress validates s and returns its lower-case form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	return Address("0x" + strings.ToLower(s[2:])), nil
}

func (a Address) String() string { return string(a) }

// Amount is a quantity of the native currency in its smallest unit.
type Amount uint64

type ServiceID uint64

type RequestID uint64

// Hash is a 32 byte keccak256 digest.
type Hash [32]byte

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// ParseHash accepts 64 hex digits with an optional 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != 64 {
		return h, errors.Newf("invalid hash length %d", len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, errors.Wrap(err, "invalid hash")
	}
	return h, nil
}

// Status is the lifecycle state of a request. The ordinals are part of the
// external contract; Matched and Cancelled are declared but never entered.
type Status uint8

const (
	Open Status = iota
	Matched
	Settled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Matched:
		return "matched"
	case Settled:
		return "settled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "open":
		return Open, nil
	case "matched":
		return Matched, nil
	case "settled":
		return Settled, nil
	case "cancelled":
		return Cancelled, nil
	}
	return 0, errors.Newf("unknown status %q", s)
}

// MaxRating is the highest accepted rating vote (5.0 in tenths).
const MaxRating = 50

// Service is a provider's listing.
type Service struct {
	ID           ServiceID `json:"id"`
	Provider     Address   `json:"provider"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PricePerUnit Amount    `json:"price_per_unit,string"` // informational, not enforced at settlement
	Active       bool      `json:"active"`
	Uptime       uint64    `json:"uptime"`
	Rating       uint64    `json:"rating"`
	RatingCount  uint64    `json:"rating_count"`
}

// Request is a requester's escrowed ask against a service.
type Request struct {
	ID        RequestID `json:"id"`
	Requester Address   `json:"requester"`
	ServiceID ServiceID `json:"service_id"`
	Objective string    `json:"objective"`
	Budget    Amount    `json:"budget,string"`
	Status    Status    `json:"status"`
}

// Offer is one provider's sealed bid on a request.
type Offer struct {
	Provider      Address `json:"provider"`
	Commitment    Hash    `json:"commitment"`
	RevealedPrice Amount  `json:"revealed_price,string"`
	Revealed      bool    `json:"revealed"`
	Accepted      bool    `json:"accepted"`
}
