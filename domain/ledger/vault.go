package ledger

import "math"

// Vault holds account balances and the escrow the ledger custodies.
// Callers check every movement before applying any of them.
type Vault struct {
	balances map[Address]Amount
	escrow   Amount
}

func newVault() *Vault {
	return &Vault{balances: make(map[Address]Amount)}
}

func (v *Vault) Balance(a Address) Amount {
	return v.balances[a]
}

func (v *Vault) Escrowed() Amount {
	return v.escrow
}

func (v *Vault) deposit(to Address, amount Amount) error {
	if v.balances[to] > math.MaxUint64-amount {
		return transferErr(ErrBalanceOverflow, "deposit to %s", to)
	}
	v.balances[to] += amount
	return nil
}

func (v *Vault) withdraw(from Address, amount Amount) error {
	if v.balances[from] < amount {
		return transferErr(ErrInsufficientFunds, "withdraw %d from %s", amount, from)
	}
	v.debit(from, amount)
	return nil
}

// lock moves amount from an account into escrow.
func (v *Vault) lock(from Address, amount Amount) error {
	if v.balances[from] < amount {
		return transferErr(ErrInsufficientFunds, "escrow %d from %s", amount, from)
	}
	if v.escrow > math.MaxUint64-amount {
		return transferErr(ErrBalanceOverflow, "escrow total")
	}
	v.debit(from, amount)
	v.escrow += amount
	return nil
}

type payout struct {
	to     Address
	amount Amount
}

// release pays total out of escrow to the payouts, in order. Every credit is
// checked before the first one lands, so a failing later payout leaves the
// earlier ones unapplied.
func (v *Vault) release(total Amount, payouts ...payout) error {
	if v.escrow < total {
		return transferErr(ErrEscrowShortfall, "release %d of %d", total, v.escrow)
	}

	var sum Amount
	next := make(map[Address]Amount, len(payouts))
	for _, p := range payouts {
		if p.amount == 0 {
			continue
		}
		cur, ok := next[p.to]
		if !ok {
			cur = v.balances[p.to]
		}
		if cur > math.MaxUint64-p.amount {
			return transferErr(ErrBalanceOverflow, "pay %d to %s", p.amount, p.to)
		}
		next[p.to] = cur + p.amount
		sum += p.amount
	}
	if sum != total {
		return transferErr(ErrEscrowShortfall, "payouts %d do not match release %d", sum, total)
	}

	v.escrow -= total
	for a, bal := range next {
		v.balances[a] = bal
	}
	return nil
}

func (v *Vault) debit(from Address, amount Amount) {
	v.balances[from] -= amount
	if v.balances[from] == 0 {
		delete(v.balances, from)
	}
}
