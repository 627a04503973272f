package ledgerv1

import "github.com/diznq/core-se/pkg/safe"

// Account holds per-asset balances and reservations for one venue participant.
//
// An asset's available amount is balance minus reserved; the standing
// invariant is 0 <= reserved <= balance for every asset. Accounts carry no
// lock of their own: all mutation goes through the assets.Repository, which
// serializes Transfer, Reserve and HasEnough under its accounting lock.
type Account struct {
	id    string
	extra string

	balances map[string]int64
	reserved map[string]int64
}

// NewAccount creates an empty account with the given identity.
func NewAccount(id string) *Account {
	return &Account{
		id:       id,
		balances: make(map[string]int64),
		reserved: make(map[string]int64),
	}
}

// ID returns the account identity.
func (a *Account) ID() string {
	return a.id
}

// Extra returns the opaque metadata attached to the account.
func (a *Account) Extra() string {
	return a.extra
}

// SetExtra attaches opaque metadata to the account. The engine never
// interprets it.
func (a *Account) SetExtra(extra string) {
	a.extra = extra
}

// Volume returns the total owned amount of asset, reserved included.
func (a *Account) Volume(asset string) int64 {
	return a.balances[asset]
}

// Reserved returns the amount of asset earmarked against open orders.
func (a *Account) Reserved(asset string) int64 {
	return a.reserved[asset]
}

// Available returns the spendable amount of asset.
func (a *Account) Available(asset string) int64 {
	return safe.Sub(a.balances[asset], a.reserved[asset])
}

// HasEnough reports whether the available amount of asset covers required.
// Callers must hold the repository accounting lock to avoid a check-then-act
// race with Reserve.
func (a *Account) HasEnough(asset string, required int64) bool {
	return a.Available(asset) >= required
}

// Transfer adds the signed delta to the asset balance. It performs no
// sufficiency check; callers needing a non-negative guarantee reserve first.
// Callers must hold the repository accounting lock.
func (a *Account) Transfer(asset string, delta int64) {
	a.balances[asset] = safe.Add(a.balances[asset], delta)
}

// Reserve adds the signed delta to the asset reservation: positive to lock
// funds at order admission, negative to release them at fill or cancel time.
// Callers must hold the repository accounting lock.
func (a *Account) Reserve(asset string, delta int64) {
	a.reserved[asset] = safe.Add(a.reserved[asset], delta)
}

// PublicAssets returns a copy of the balance map.
func (a *Account) PublicAssets() map[string]int64 {
	result := make(map[string]int64, len(a.balances))
	for asset, volume := range a.balances {
		result[asset] = volume
	}
	return result
}

// CheckInvariant panics unless 0 <= reserved <= balance holds for asset.
// Settlement calls it after all legs have been applied; a violation is a
// correctness bug in the matching protocol, not a recoverable condition.
func (a *Account) CheckInvariant(asset string) {
	balance := a.balances[asset]
	reserved := a.reserved[asset]
	if balance < 0 {
		panic("ledger: negative balance of " + asset + " on account " + a.id)
	}
	if reserved < 0 {
		panic("ledger: reservation underflow of " + asset + " on account " + a.id)
	}
	if reserved > balance {
		panic("ledger: reservation exceeds balance of " + asset + " on account " + a.id)
	}
}
