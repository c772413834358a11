package grpcserver

import "bite/domain/ledger"

// Amounts travel as JSON strings so 64-bit values survive clients that
// parse numbers as doubles.

// -------------------- Commands --------------------

type RegisterServiceRequest struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	PricePerUnit ledger.Amount `json:"price_per_unit,string"`
	Uptime       uint64        `json:"uptime"`
	Rating       uint64        `json:"rating"`
}

type CreateRequestRequest struct {
	ServiceID ledger.ServiceID `json:"service_id"`
	Objective string           `json:"objective"`
	Value     ledger.Amount    `json:"value,string"`
}

type SubmitOfferRequest struct {
	RequestID  ledger.RequestID `json:"request_id"`
	Commitment ledger.Hash      `json:"commitment"`
}

type RevealOfferRequest struct {
	RequestID ledger.RequestID `json:"request_id"`
	Price     ledger.Amount    `json:"price,string"`
	Nonce     uint64           `json:"nonce,string"`
}

type SettlePaymentRequest struct {
	RequestID ledger.RequestID `json:"request_id"`
	Provider  string           `json:"provider"`
}

type RateServiceRequest struct {
	ServiceID ledger.ServiceID `json:"service_id"`
	Rating    uint64           `json:"rating"`
}

// TransferRequest is used by Deposit and Withdraw.
type TransferRequest struct {
	Amount ledger.Amount `json:"amount,string"`
}

// Receipt is returned by every command.
type Receipt struct {
	Seq       uint64           `json:"seq"`
	ServiceID ledger.ServiceID `json:"service_id,omitempty"`
	RequestID ledger.RequestID `json:"request_id,omitempty"`
	Events    []ledger.Event   `json:"events"`
}

// -------------------- Queries --------------------

type GetServiceRequest struct {
	ServiceID ledger.ServiceID `json:"service_id"`
}

type ServiceResponse struct {
	Service ledger.Service `json:"service"`
}

type ListServicesRequest struct{}

type ListServicesResponse struct {
	Services []ledger.Service `json:"services"`
}

type GetRequestRequest struct {
	RequestID ledger.RequestID `json:"request_id"`
}

type RequestResponse struct {
	Request ledger.Request `json:"request"`
}

type ListRequestsRequest struct {
	// Status filters by status name ("open", "settled", ...). Empty lists all.
	Status string `json:"status,omitempty"`
}

type ListRequestsResponse struct {
	Requests []ledger.Request `json:"requests"`
}

type ListBiddersRequest struct {
	RequestID ledger.RequestID `json:"request_id"`
}

type ListBiddersResponse struct {
	Bidders []ledger.Address `json:"bidders"`
}

type GetOfferRequest struct {
	RequestID ledger.RequestID `json:"request_id"`
	Provider  string           `json:"provider"`
}

type OfferResponse struct {
	Offer ledger.Offer `json:"offer"`
}

type GetBalanceRequest struct {
	Account string `json:"account"`
}

type BalanceResponse struct {
	Account ledger.Address `json:"account"`
	Balance ledger.Amount  `json:"balance,string"`
	Escrow  ledger.Amount  `json:"escrow,string"`
}
