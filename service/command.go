package service

import (
	"bite/domain/ledger"
	entrywal "bite/infra/wal/entry"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Op identifies a command. It is stored as the entry WAL record type, so
// the values are part of the on-disk format and must never be reused.
type Op = entrywal.RecordType

const (
	OpRegisterService Op = iota + 1
	OpCreateRequest
	OpSubmitOffer
	OpRevealOffer
	OpSettlePayment
	OpRateService
	OpDeposit
	OpWithdraw
)

func opName(op Op) string {
	switch op {
	case OpRegisterService:
		return "register_service"
	case OpCreateRequest:
		return "create_request"
	case OpSubmitOffer:
		return "submit_offer"
	case OpRevealOffer:
		return "reveal_offer"
	case OpSettlePayment:
		return "settle_payment"
	case OpRateService:
		return "rate_service"
	case OpDeposit:
		return "deposit"
	case OpWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// Command is the durable form of one ledger call. Fields not used by Op
// stay zero and are not encoded.
type Command struct {
	Op          Op
	Caller      ledger.Address
	ServiceID   ledger.ServiceID
	RequestID   ledger.RequestID
	Provider    ledger.Address
	Name        string
	Description string
	Objective   string
	// Amount is the price per unit, budget, revealed price or transfer
	// amount depending on Op.
	Amount     ledger.Amount
	Uptime     uint64
	Rating     uint64
	Nonce      uint64
	Commitment ledger.Hash
	// KnownService records whether CreateRequest was admitted under the
	// registered-service rule. Replay follows the recorded value, not the
	// current configuration.
	KnownService bool
}

// protobuf field numbers of the WAL payload
const (
	fieldCaller protowire.Number = iota + 1
	fieldServiceID
	fieldRequestID
	fieldProvider
	fieldName
	fieldDescription
	fieldObjective
	fieldAmount
	fieldUptime
	fieldRating
	fieldNonce
	fieldCommitment
	fieldKnownService
)

func encodeCommand(c Command) []byte {
	var b []byte
	str := func(n protowire.Number, v string) {
		if v != "" {
			b = protowire.AppendTag(b, n, protowire.BytesType)
			b = protowire.AppendString(b, v)
		}
	}
	num := func(n protowire.Number, v uint64) {
		if v != 0 {
			b = protowire.AppendTag(b, n, protowire.VarintType)
			b = protowire.AppendVarint(b, v)
		}
	}

	str(fieldCaller, string(c.Caller))
	num(fieldServiceID, uint64(c.ServiceID))
	num(fieldRequestID, uint64(c.RequestID))
	str(fieldProvider, string(c.Provider))
	str(fieldName, c.Name)
	str(fieldDescription, c.Description)
	str(fieldObjective, c.Objective)
	num(fieldAmount, uint64(c.Amount))
	num(fieldUptime, c.Uptime)
	num(fieldRating, c.Rating)
	num(fieldNonce, c.Nonce)
	if c.KnownService {
		num(fieldKnownService, 1)
	}
	if c.Op == OpSubmitOffer {
		b = protowire.AppendTag(b, fieldCommitment, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Commitment[:])
	}
	return b
}

func decodeCommand(op Op, b []byte) (Command, error) {
	c := Command{Op: op}
	for len(b) > 0 {
		n, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return c, errors.Wrap(protowire.ParseError(l), "command tag")
		}
		b = b[l:]

		switch typ {
		case protowire.VarintType:
			v, l := protowire.ConsumeVarint(b)
			if l < 0 {
				return c, errors.Wrapf(protowire.ParseError(l), "field %d", n)
			}
			b = b[l:]
			switch n {
			case fieldServiceID:
				c.ServiceID = ledger.ServiceID(v)
			case fieldRequestID:
				c.RequestID = ledger.RequestID(v)
			case fieldAmount:
				c.Amount = ledger.Amount(v)
			case fieldUptime:
				c.Uptime = v
			case fieldRating:
				c.Rating = v
			case fieldNonce:
				c.Nonce = v
			case fieldKnownService:
				c.KnownService = v != 0
			}

		case protowire.BytesType:
			v, l := protowire.ConsumeBytes(b)
			if l < 0 {
				return c, errors.Wrapf(protowire.ParseError(l), "field %d", n)
			}
			b = b[l:]
			switch n {
			case fieldCaller:
				c.Caller = ledger.Address(v)
			case fieldProvider:
				c.Provider = ledger.Address(v)
			case fieldName:
				c.Name = string(v)
			case fieldDescription:
				c.Description = string(v)
			case fieldObjective:
				c.Objective = string(v)
			case fieldCommitment:
				if len(v) != len(c.Commitment) {
					return c, errors.Newf("commitment is %d bytes", len(v))
				}
				copy(c.Commitment[:], v)
			}

		default:
			l := protowire.ConsumeFieldValue(n, typ, b)
			if l < 0 {
				return c, errors.Wrapf(protowire.ParseError(l), "field %d", n)
			}
			b = b[l:]
		}
	}
	return c, nil
}

// Receipt reports what a successful command did.
type Receipt struct {
	Seq       uint64
	ServiceID ledger.ServiceID
	RequestID ledger.RequestID
	Events    []ledger.Event
}

// apply runs c against l. Both the live path and replay go through here,
// which is what makes replay reproduce the original outcome.
func apply(l *ledger.Ledger, c Command) (Receipt, error) {
	var (
		r   Receipt
		err error
	)
	switch c.Op {
	case OpRegisterService:
		r.ServiceID, r.Events, err = l.RegisterService(c.Caller, ledger.ServiceSpec{
			Name:         c.Name,
			Description:  c.Description,
			PricePerUnit: c.Amount,
			Uptime:       c.Uptime,
			Rating:       c.Rating,
		})
	case OpCreateRequest:
		create := l.CreateRequest
		if c.KnownService {
			create = l.CreateRequestForKnownService
		}
		r.RequestID, r.Events, err = create(c.Caller, c.ServiceID, c.Objective, c.Amount)
	case OpSubmitOffer:
		r.RequestID = c.RequestID
		r.Events, err = l.SubmitOffer(c.Caller, c.RequestID, c.Commitment)
	case OpRevealOffer:
		r.RequestID = c.RequestID
		r.Events, err = l.RevealOffer(c.Caller, c.RequestID, c.Amount, c.Nonce)
	case OpSettlePayment:
		r.RequestID = c.RequestID
		r.Events, err = l.SettlePayment(c.Caller, c.RequestID, c.Provider)
	case OpRateService:
		r.ServiceID = c.ServiceID
		r.Events, err = l.RateService(c.Caller, c.ServiceID, c.Rating)
	case OpDeposit:
		r.Events, err = l.Deposit(c.Caller, c.Amount)
	case OpWithdraw:
		r.Events, err = l.Withdraw(c.Caller, c.Amount)
	default:
		return r, errors.Newf("unknown op %d", c.Op)
	}
	return r, err
}
