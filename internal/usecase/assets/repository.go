// Package assets implements the venue's asset ledger: it owns every
// account and order book, admits orders, drives the matching tick and is
// the single authority for balance mutation.
package assets

import (
	"sort"
	"sync"
	"sync/atomic"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
	orderbookv1 "github.com/diznq/core-se/internal/domain/orderbook/v1"
	"github.com/diznq/core-se/internal/view"
	"github.com/diznq/core-se/pkg/logger"
	"github.com/diznq/core-se/pkg/safe"
)

// Repository owns the set of accounts and order books, assigns order ids,
// advances the global tick and enforces the accounting lock around every
// balance mutation.
//
// Two lock tiers exist: the repository-wide accounting mutex serializes
// Transfer, Reserve and HasEnough so no two orders can pass a sufficiency
// check against the same funds; each book's own lock serializes its bid
// and ask collections. The established lock order is book lock before
// accounting lock: placement releases the accounting lock before inserting
// into a book, while settlement acquires it with the book lock held during
// matching.
type Repository struct {
	mu       sync.RWMutex
	accounts map[string]*ledgerv1.Account
	books    map[string]*orderbookv1.Book

	accountingMu sync.Mutex
	orderID      atomic.Int64
	tick         atomic.Int64

	logger *logger.Logger
}

// NewRepository creates an empty repository.
func NewRepository(log *logger.Logger) *Repository {
	return &Repository{
		accounts: make(map[string]*ledgerv1.Account),
		books:    make(map[string]*orderbookv1.Book),
		logger:   log,
	}
}

// Account returns the account with the given name, creating it when first
// referenced. Idempotent, never fails.
func (r *Repository) Account(name string) *ledgerv1.Account {
	r.mu.RLock()
	account, ok := r.accounts[name]
	r.mu.RUnlock()
	if ok {
		return account
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok = r.accounts[name]; ok {
		return account
	}
	account = ledgerv1.NewAccount(name)
	r.accounts[name] = account
	return account
}

// Book returns the order book of the given pair, creating it when first
// referenced. The two assets resolve to the same book in either call
// order: the book's base is always the lexicographically smaller asset id.
func (r *Repository) Book(base, quote string) *orderbookv1.Book {
	if quote < base {
		base, quote = quote, base
	}
	key := base + "/" + quote

	r.mu.RLock()
	book, ok := r.books[key]
	r.mu.RUnlock()
	if ok {
		return book
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if book, ok = r.books[key]; ok {
		return book
	}
	book = orderbookv1.NewBook(base, quote)
	r.books[key] = book
	return book
}

// Accounts returns every known account, ordered by id.
func (r *Repository) Accounts() []*ledgerv1.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]*ledgerv1.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID() < accounts[j].ID() })
	return accounts
}

// AccountViews projects every account, ordered by id. The projection runs
// under the accounting lock so it cannot race settlement, deposits or
// reservations mutating the same accounts.
func (r *Repository) AccountViews() []view.AccountView {
	accounts := r.Accounts()

	r.accountingMu.Lock()
	defer r.accountingMu.Unlock()

	views := make([]view.AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, view.NewAccountView(account))
	}
	return views
}

// Books returns every known order book, ordered by pair name.
func (r *Repository) Books() []*orderbookv1.Book {
	r.mu.RLock()
	defer r.mu.RUnlock()

	books := make([]*orderbookv1.Book, 0, len(r.books))
	for _, book := range r.books {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Name() < books[j].Name() })
	return books
}

// Tick returns the current logical tick.
func (r *Repository) Tick() int64 {
	return r.tick.Load()
}

// Transfer adds the signed delta to the account's asset balance under the
// accounting lock. It performs no sufficiency check: callers needing a
// non-negative guarantee must reserve first.
func (r *Repository) Transfer(account *ledgerv1.Account, asset string, delta int64) {
	r.accountingMu.Lock()
	defer r.accountingMu.Unlock()
	account.Transfer(asset, delta)
}

// Reserve adds the signed delta to the account's asset reservation under
// the accounting lock.
func (r *Repository) Reserve(account *ledgerv1.Account, asset string, delta int64) {
	r.accountingMu.Lock()
	defer r.accountingMu.Unlock()
	account.Reserve(asset, delta)
}

// HasEnough reports whether the account's available balance covers the
// required amount, evaluated under the accounting lock.
func (r *Repository) HasEnough(account *ledgerv1.Account, asset string, required int64) bool {
	r.accountingMu.Lock()
	defer r.accountingMu.Unlock()
	return account.HasEnough(asset, required)
}

// PlaceOrder admits an order into the book. Asks lock the order's volume
// of the base asset, bids lock price*volume of the quote asset. Under the
// accounting lock the available balance is checked and, when sufficient,
// the next order id is assigned and the funds reserved; the order is then
// inserted into the book. On insufficiency *ledgerv1.InsufficientAssets is
// returned and nothing is mutated.
func (r *Repository) PlaceOrder(book *orderbookv1.Book, order *orderbookv1.Order, side orderbookv1.Side) (*orderbookv1.Order, error) {
	lockAsset := book.Quote()
	lockVolume := safe.Mul(order.Price, order.Requested)
	if side == orderbookv1.SideAsk {
		lockAsset = book.Base()
		lockVolume = order.Requested
	}

	account := r.Account(order.Account)

	r.accountingMu.Lock()
	if !account.HasEnough(lockAsset, lockVolume) {
		r.accountingMu.Unlock()
		return nil, &ledgerv1.InsufficientAssets{Asset: lockAsset, Required: lockVolume}
	}
	order.ID = r.orderID.Add(1)
	order.Side = side
	account.Reserve(lockAsset, lockVolume)
	r.accountingMu.Unlock()

	// The reservation already guarantees the funds; arrival priority is the
	// id assigned above, so inserting outside the accounting lock keeps the
	// book ordering deterministic without nesting the two locks.
	book.Insert(order)

	if r.logger != nil {
		r.logger.Debug("order admitted",
			logger.Field{Key: "book", Value: book.Name()},
			logger.Field{Key: "order_id", Value: order.ID},
			logger.Field{Key: "side", Value: side.String()},
			logger.Field{Key: "price", Value: order.Price},
			logger.Field{Key: "volume", Value: order.Requested},
		)
	}

	return order, nil
}

// CancelOrder removes a resting order from the book and releases its
// outstanding reservation. Returns false when the order is not resting.
func (r *Repository) CancelOrder(book *orderbookv1.Book, orderID int64) (*orderbookv1.Order, bool) {
	order, ok := book.Cancel(orderID)
	if !ok {
		return nil, false
	}
	r.ReleaseOrder(order, book.Base(), book.Quote())
	return order, true
}

// Advance matches every order book at the current tick, then increments
// the tick counter. It returns the number of fills executed and is the
// engine's sole time driver. Safe under concurrent invocation: each book
// match is serialized by the book's own lock.
func (r *Repository) Advance() int64 {
	tick := r.tick.Load()

	var matches int64
	for _, book := range r.Books() {
		matches += book.Match(tick, r)
	}

	r.tick.Add(1)
	return matches
}

// AdvanceSteps advances the tick the given number of times and returns the
// total number of fills executed across all steps.
func (r *Repository) AdvanceSteps(steps int) int64 {
	var matches int64
	for i := 0; i < steps; i++ {
		matches += r.Advance()
	}
	return matches
}

// SettleTrade executes the atomic four-leg transfer for one fill. Both
// orders were reserved at admission, so the legs cannot fail on
// insufficiency; any invariant violation after the legs apply is a
// matching bug and panics. Implements orderbookv1.Settler.
func (r *Repository) SettleTrade(bid, ask *orderbookv1.Order, base, quote string, price, volume int64) {
	bidder := r.Account(bid.Account)
	asker := r.Account(ask.Account)

	quoteLeg := safe.Mul(price, volume)
	// The bidder's reservation was sized at the order's limit price; when
	// the execution price is better the excess is released here as well,
	// never left dangling.
	quoteRelease := safe.Mul(bid.Price, volume)

	r.accountingMu.Lock()
	defer r.accountingMu.Unlock()

	bid.Fill(volume)
	ask.Fill(volume)

	bidder.Transfer(quote, -quoteLeg)
	bidder.Reserve(quote, -quoteRelease)
	bidder.Transfer(base, volume)

	asker.Transfer(base, -volume)
	asker.Reserve(base, -volume)
	asker.Transfer(quote, quoteLeg)

	bidder.CheckInvariant(base)
	bidder.CheckInvariant(quote)
	asker.CheckInvariant(base)
	asker.CheckInvariant(quote)
}

// ReleaseOrder returns the outstanding reservation of a cancelled or
// expired order. Implements orderbookv1.Settler.
func (r *Repository) ReleaseOrder(order *orderbookv1.Order, base, quote string) {
	lockAsset := quote
	lockVolume := safe.Mul(order.Price, order.Remaining())
	if order.Side == orderbookv1.SideAsk {
		lockAsset = base
		lockVolume = order.Remaining()
	}

	account := r.Account(order.Account)

	r.accountingMu.Lock()
	defer r.accountingMu.Unlock()
	account.Reserve(lockAsset, -lockVolume)
	account.CheckInvariant(lockAsset)
}
