package ledger

import (
	"math"
	"math/bits"
	"sort"

	"github.com/cockroachdb/errors"
)

type offerKey struct {
	request  RequestID
	provider Address
}

// Ledger is single-writer and deterministic.
type Ledger struct {
	services map[ServiceID]*Service
	requests map[RequestID]*Request
	offers   map[offerKey]*Offer
	bidders  map[RequestID][]Address
	vault    *Vault

	lastServiceID ServiceID
	lastRequestID RequestID
}

func New() *Ledger {
	return &Ledger{
		services: make(map[ServiceID]*Service),
		requests: make(map[RequestID]*Request),
		offers:   make(map[offerKey]*Offer),
		bidders:  make(map[RequestID][]Address),
		vault:    newVault(),
	}
}

// ServiceSpec is the provider-supplied part of a Service.
type ServiceSpec struct {
	Name         string
	Description  string
	PricePerUnit Amount
	Uptime       uint64
	Rating       uint64
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// RegisterService lists a new service owned by caller. Uptime and rating are
// taken as given.
func (l *Ledger) RegisterService(caller Address, spec ServiceSpec) (ServiceID, []Event, error) {
	id := l.lastServiceID + 1
	l.services[id] = &Service{
		ID:           id,
		Provider:     caller,
		Name:         spec.Name,
		Description:  spec.Description,
		PricePerUnit: spec.PricePerUnit,
		Active:       true,
		Uptime:       spec.Uptime,
		Rating:       spec.Rating,
		RatingCount:  1,
	}
	l.lastServiceID = id

	return id, []Event{{
		Type:      EventServiceRegistered,
		ServiceID: id,
		Account:   caller,
		Name:      spec.Name,
		Amount:    spec.PricePerUnit,
	}}, nil
}

// CreateRequest escrows value from caller's balance as the request budget.
// serviceID is not checked against the registry; callers that want that
// use CreateRequestForKnownService.
func (l *Ledger) CreateRequest(caller Address, serviceID ServiceID, objective string, value Amount) (RequestID, []Event, error) {
	if value == 0 {
		return 0, nil, ErrZeroBudget
	}
	if err := l.vault.lock(caller, value); err != nil {
		return 0, nil, err
	}

	id := l.lastRequestID + 1
	l.requests[id] = &Request{
		ID:        id,
		Requester: caller,
		ServiceID: serviceID,
		Objective: objective,
		Budget:    value,
		Status:    Open,
	}
	l.lastRequestID = id

	return id, []Event{{
		Type:      EventRequestCreated,
		RequestID: id,
		ServiceID: serviceID,
		Account:   caller,
		Amount:    value,
	}}, nil
}

// CreateRequestForKnownService is CreateRequest that also rejects an
// unregistered serviceID.
func (l *Ledger) CreateRequestForKnownService(caller Address, serviceID ServiceID, objective string, value Amount) (RequestID, []Event, error) {
	if value == 0 {
		return 0, nil, ErrZeroBudget
	}
	if _, ok := l.services[serviceID]; !ok {
		return 0, nil, errors.Wrapf(ErrServiceNotFound, "service %d", serviceID)
	}
	return l.CreateRequest(caller, serviceID, objective, value)
}

// SubmitOffer stores caller's sealed bid. One offer per provider per
// request; the commitment value itself is never used as a presence marker.
func (l *Ledger) SubmitOffer(caller Address, requestID RequestID, commitment Hash) ([]Event, error) {
	req, err := l.request(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != Open {
		return nil, errors.Wrapf(ErrRequestNotOpen, "request %d is %s", requestID, req.Status)
	}
	key := offerKey{requestID, caller}
	if _, ok := l.offers[key]; ok {
		return nil, errors.Wrapf(ErrOfferExists, "request %d provider %s", requestID, caller)
	}

	l.offers[key] = &Offer{Provider: caller, Commitment: commitment}
	l.bidders[requestID] = append(l.bidders[requestID], caller)

	c := commitment
	return []Event{{
		Type:       EventOfferCommitted,
		RequestID:  requestID,
		Provider:   caller,
		Commitment: &c,
	}}, nil
}

// RevealOffer opens caller's commitment. It fails distinctly when there is
// no offer, when it was already revealed, and when (price, nonce) does not
// hash to the commitment.
func (l *Ledger) RevealOffer(caller Address, requestID RequestID, price Amount, nonce uint64) ([]Event, error) {
	o, ok := l.offers[offerKey{requestID, caller}]
	if !ok {
		return nil, errors.Wrapf(ErrNoOffer, "request %d provider %s", requestID, caller)
	}
	if o.Revealed {
		return nil, errors.Wrapf(ErrAlreadyRevealed, "request %d provider %s", requestID, caller)
	}
	if !Verify(o.Commitment, price, nonce) {
		return nil, errors.Wrapf(ErrBadProof, "request %d provider %s", requestID, caller)
	}

	o.RevealedPrice = price
	o.Revealed = true

	return []Event{{
		Type:      EventOfferRevealed,
		RequestID: requestID,
		Provider:  caller,
		Amount:    price,
	}}, nil
}

// SettlePayment pays provider's revealed price out of the request's escrow
// and refunds the rest to the requester. Only the requester may settle, and
// only once.
func (l *Ledger) SettlePayment(caller Address, requestID RequestID, provider Address) ([]Event, error) {
	req, err := l.request(requestID)
	if err != nil {
		return nil, err
	}
	if req.Requester != caller {
		return nil, errors.Wrapf(ErrNotRequester, "request %d", requestID)
	}
	if req.Status != Open {
		return nil, errors.Wrapf(ErrRequestNotOpen, "request %d is %s", requestID, req.Status)
	}
	o, ok := l.offers[offerKey{requestID, provider}]
	if !ok {
		return nil, errors.Wrapf(ErrOfferNotFound, "request %d provider %s", requestID, provider)
	}
	if !o.Revealed {
		return nil, errors.Wrapf(ErrNotRevealed, "request %d provider %s", requestID, provider)
	}
	if o.RevealedPrice > req.Budget {
		return nil, errors.Wrapf(ErrPriceExceedsBudget, "price %d budget %d", o.RevealedPrice, req.Budget)
	}

	refund := req.Budget - o.RevealedPrice
	if err := l.vault.release(req.Budget,
		payout{to: provider, amount: o.RevealedPrice},
		payout{to: req.Requester, amount: refund},
	); err != nil {
		return nil, err
	}

	req.Status = Settled
	o.Accepted = true

	return []Event{{
		Type:      EventPaymentSettled,
		RequestID: requestID,
		ServiceID: req.ServiceID,
		Account:   caller,
		Provider:  provider,
		Amount:    o.RevealedPrice,
		Refund:    refund,
	}}, nil
}

// RateService folds rating into the service's moving average. Anyone may
// rate, any number of times.
func (l *Ledger) RateService(caller Address, serviceID ServiceID, rating uint64) ([]Event, error) {
	if rating > MaxRating {
		return nil, errors.Wrapf(ErrRatingOutOfRange, "rating %d", rating)
	}
	s, ok := l.services[serviceID]
	if !ok {
		return nil, errors.Wrapf(ErrServiceNotFound, "service %d", serviceID)
	}
	if s.RatingCount == math.MaxUint64 {
		return nil, errors.Wrapf(ErrRatingCountExhausted, "service %d", serviceID)
	}

	s.Rating = movingAverage(s.Rating, s.RatingCount, rating)
	s.RatingCount++

	return []Event{{
		Type:      EventServiceRated,
		ServiceID: serviceID,
		Account:   caller,
		Rating:    rating,
		NewRating: s.Rating,
	}}, nil
}

// Deposit credits amount entering the ledger from outside to caller.
func (l *Ledger) Deposit(caller Address, amount Amount) ([]Event, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if err := l.vault.deposit(caller, amount); err != nil {
		return nil, err
	}
	return []Event{{Type: EventFundsDeposited, Account: caller, Amount: amount}}, nil
}

// Withdraw debits amount leaving the ledger from caller's balance.
func (l *Ledger) Withdraw(caller Address, amount Amount) ([]Event, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if err := l.vault.withdraw(caller, amount); err != nil {
		return nil, err
	}
	return []Event{{Type: EventFundsWithdrawn, Account: caller, Amount: amount}}, nil
}

// floor((avg*count + vote) / (count+1)) without intermediate overflow.
func movingAverage(avg, count, vote uint64) uint64 {
	hi, lo := bits.Mul64(avg, count)
	lo, carry := bits.Add64(lo, vote, 0)
	hi += carry
	q, _ := bits.Div64(hi, lo, count+1)
	return q
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

func (l *Ledger) Service(id ServiceID) (Service, error) {
	s, ok := l.services[id]
	if !ok {
		return Service{}, errors.Wrapf(ErrServiceNotFound, "service %d", id)
	}
	return *s, nil
}

// Services returns every service ordered by id.
func (l *Ledger) Services() []Service {
	out := make([]Service, 0, len(l.services))
	for _, s := range l.services {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Ledger) Request(id RequestID) (Request, error) {
	r, err := l.request(id)
	if err != nil {
		return Request{}, err
	}
	return *r, nil
}

// Requests returns requests ordered by id, optionally only those in status.
func (l *Ledger) Requests(status *Status) []Request {
	out := make([]Request, 0, len(l.requests))
	for _, r := range l.requests {
		if status != nil && r.Status != *status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bidders lists providers that committed on a request, in commit order.
func (l *Ledger) Bidders(requestID RequestID) ([]Address, error) {
	if _, err := l.request(requestID); err != nil {
		return nil, err
	}
	return append([]Address{}, l.bidders[requestID]...), nil
}

func (l *Ledger) Offer(requestID RequestID, provider Address) (Offer, error) {
	o, ok := l.offers[offerKey{requestID, provider}]
	if !ok {
		return Offer{}, errors.Wrapf(ErrOfferNotFound, "request %d provider %s", requestID, provider)
	}
	return *o, nil
}

func (l *Ledger) Balance(a Address) Amount {
	return l.vault.Balance(a)
}

func (l *Ledger) Escrowed() Amount {
	return l.vault.Escrowed()
}

func (l *Ledger) request(id RequestID) (*Request, error) {
	r, ok := l.requests[id]
	if !ok {
		return nil, errors.Wrapf(ErrRequestNotFound, "request %d", id)
	}
	return r, nil
}
