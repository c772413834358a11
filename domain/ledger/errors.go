package ledger

import "github.com/cockroachdb/errors"

// Kind classifies a ledger failure by the condition that caused it.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindStateViolation
	KindUnauthorized
	KindProofFailure
	KindEconomic
	KindTransferFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindStateViolation:
		return "state_violation"
	case KindUnauthorized:
		return "unauthorized"
	case KindProofFailure:
		return "proof_failure"
	case KindEconomic:
		return "economic"
	case KindTransferFailure:
		return "transfer_failure"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidAddress       = errors.New("invalid address")
	ErrZeroBudget           = errors.New("budget must be > 0")
	ErrZeroAmount           = errors.New("amount must be > 0")
	ErrRatingOutOfRange     = errors.New("rating must be between 0 and 50")
	ErrRatingCountExhausted = errors.New("rating count exhausted")

	ErrServiceNotFound = errors.New("service not found")
	ErrRequestNotFound = errors.New("request not found")
	ErrOfferNotFound   = errors.New("offer not found")

	ErrRequestNotOpen  = errors.New("request is not open")
	ErrOfferExists     = errors.New("offer already submitted")
	ErrNoOffer         = errors.New("no offer to reveal")
	ErrAlreadyRevealed = errors.New("offer already revealed")
	ErrNotRevealed     = errors.New("offer not revealed")

	ErrNotRequester = errors.New("caller is not the requester")

	ErrBadProof = errors.New("price and nonce do not match commitment")

	ErrPriceExceedsBudget = errors.New("revealed price exceeds budget")

	// ErrTransferFailed marks every failure to move funds.
	ErrTransferFailed    = errors.New("transfer failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrEscrowShortfall   = errors.New("escrow shortfall")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAddress, KindInvalidInput},
	{ErrZeroBudget, KindInvalidInput},
	{ErrZeroAmount, KindInvalidInput},
	{ErrRatingOutOfRange, KindInvalidInput},
	{ErrRatingCountExhausted, KindInvalidInput},
	{ErrServiceNotFound, KindNotFound},
	{ErrRequestNotFound, KindNotFound},
	{ErrOfferNotFound, KindNotFound},
	{ErrRequestNotOpen, KindStateViolation},
	{ErrOfferExists, KindStateViolation},
	{ErrNoOffer, KindStateViolation},
	{ErrAlreadyRevealed, KindStateViolation},
	{ErrNotRevealed, KindStateViolation},
	{ErrNotRequester, KindUnauthorized},
	{ErrBadProof, KindProofFailure},
	{ErrPriceExceedsBudget, KindEconomic},
	{ErrTransferFailed, KindTransferFailure},
}

// KindOf reports the kind of a (possibly wrapped) ledger error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsDomain reports whether err was produced by a ledger rule rather than
// by the surrounding infrastructure.
func IsDomain(err error) bool {
	return KindOf(err) != KindUnknown
}

func transferErr(cause error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(cause, format, args...), ErrTransferFailed)
}
