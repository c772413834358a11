package ledger

import "sort"

// State is a complete, order-stable copy of the ledger, suitable for
// encoding into snapshots.
type State struct {
	LastServiceID ServiceID
	LastRequestID RequestID
	Services      []Service
	Requests      []Request
	Offers        []OfferState
	Balances      []BalanceState
	Escrow        Amount
}

type OfferState struct {
	RequestID RequestID
	Offer     Offer
}

type BalanceState struct {
	Account Address
	Amount  Amount
}

// Export copies the current state. Offers are listed per request in the
// order their providers committed, which also rebuilds the bidder lists.
func (l *Ledger) Export() State {
	s := State{
		LastServiceID: l.lastServiceID,
		LastRequestID: l.lastRequestID,
		Services:      l.Services(),
		Requests:      l.Requests(nil),
		Escrow:        l.vault.escrow,
	}

	for _, r := range s.Requests {
		for _, p := range l.bidders[r.ID] {
			s.Offers = append(s.Offers, OfferState{RequestID: r.ID, Offer: *l.offers[offerKey{r.ID, p}]})
		}
	}

	for a, amt := range l.vault.balances {
		s.Balances = append(s.Balances, BalanceState{Account: a, Amount: amt})
	}
	sort.Slice(s.Balances, func(i, j int) bool { return s.Balances[i].Account < s.Balances[j].Account })

	return s
}

// Restore builds a ledger from an exported state.
func Restore(s State) *Ledger {
	l := New()
	l.lastServiceID = s.LastServiceID
	l.lastRequestID = s.LastRequestID

	for i := range s.Services {
		svc := s.Services[i]
		l.services[svc.ID] = &svc
	}
	for i := range s.Requests {
		r := s.Requests[i]
		l.requests[r.ID] = &r
	}
	for i := range s.Offers {
		o := s.Offers[i].Offer
		id := s.Offers[i].RequestID
		l.offers[offerKey{id, o.Provider}] = &o
		l.bidders[id] = append(l.bidders[id], o.Provider)
	}
	for _, b := range s.Balances {
		l.vault.balances[b.Account] = b.Amount
	}
	l.vault.escrow = s.Escrow

	return l
}
