package ledger

import (
	"encoding/json"
	"strconv"
)

type EventType string

const (
	EventServiceRegistered EventType = "ServiceRegistered"
	EventRequestCreated    EventType = "RequestCreated"
	EventOfferCommitted    EventType = "OfferCommitted"
	EventOfferRevealed     EventType = "OfferRevealed"
	EventPaymentSettled    EventType = "PaymentSettled"
	EventServiceRated      EventType = "ServiceRated"
	EventFundsDeposited    EventType = "FundsDeposited"
	EventFundsWithdrawn    EventType = "FundsWithdrawn"
)

// Event is an observable state change. Only the fields relevant to Type
// are set.
type Event struct {
	Type       EventType `json:"type"`
	ServiceID  ServiceID `json:"service_id,omitempty"`
	RequestID  RequestID `json:"request_id,omitempty"`
	Account    Address   `json:"account,omitempty"`
	Provider   Address   `json:"provider,omitempty"`
	Name       string    `json:"name,omitempty"`
	Commitment *Hash     `json:"commitment,omitempty"`
	Amount     Amount    `json:"amount,string"`
	Refund     Amount    `json:"refund,string"`
	Rating     uint64    `json:"rating"`
	NewRating  uint64    `json:"new_rating"`
}

// MarshalJSON writes amount, refund and ratings exactly for the event
// types that carry them, zero values included.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Amount    *Amount `json:"amount,string,omitempty"`
		Refund    *Amount `json:"refund,string,omitempty"`
		Rating    *uint64 `json:"rating,omitempty"`
		NewRating *uint64 `json:"new_rating,omitempty"`
	}{plain: plain(e)}

	switch e.Type {
	case EventServiceRegistered, EventRequestCreated, EventOfferRevealed,
		EventFundsDeposited, EventFundsWithdrawn:
		out.Amount = &e.Amount
	case EventPaymentSettled:
		out.Amount = &e.Amount
		out.Refund = &e.Refund
	case EventServiceRated:
		out.Rating = &e.Rating
		out.NewRating = &e.NewRating
	}
	return json.Marshal(out)
}

// PartitionKey groups events of one entity so they stay ordered on a
// partitioned stream.
func (e Event) PartitionKey() string {
	switch {
	case e.RequestID != 0:
		return "request/" + strconv.FormatUint(uint64(e.RequestID), 10)
	case e.ServiceID != 0:
		return "service/" + strconv.FormatUint(uint64(e.ServiceID), 10)
	default:
		return "account/" + string(e.Account)
	}
}
