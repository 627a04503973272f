// Package strategy runs compiled trading scripts against the venue: it
// is the vm.Host implementation, translating BUY, SELL and READ into
// order placements and book reads on behalf of one account.
package strategy

import (
	orderbookv1 "github.com/diznq/core-se/internal/domain/orderbook/v1"
	"github.com/diznq/core-se/internal/usecase/assets"
	"github.com/diznq/core-se/internal/vm"
	"github.com/diznq/core-se/pkg/logger"
)

// Runner executes scripts for one account on one order book.
type Runner struct {
	repo    *assets.Repository
	account string
	book    *orderbookv1.Book
	machine *vm.Machine
	logger  *logger.Logger
}

// NewRunner builds a runner. The machine's memory persists across Run
// calls so a script can carry state from tick to tick.
func NewRunner(repo *assets.Repository, account string, book *orderbookv1.Book, log *logger.Logger) *Runner {
	r := &Runner{
		repo:    repo,
		account: account,
		book:    book,
		logger:  log,
	}
	r.machine = vm.NewMachine(r)
	return r
}

// Run executes a compiled script once.
func (r *Runner) Run(script vm.Script) (vm.Result, error) {
	if err := r.machine.Run(script); err != nil {
		return vm.Result{}, err
	}
	return r.machine.Result(), nil
}

// Buy places a bid at the given price and volume, returning the order id
// or -1 when the account cannot cover it.
func (r *Runner) Buy(price, volume int64) int64 {
	return r.place(orderbookv1.SideBid, price, volume)
}

// Sell places an ask at the given price and volume, returning the order
// id or -1 when the account cannot cover it.
func (r *Runner) Sell(price, volume int64) int64 {
	return r.place(orderbookv1.SideAsk, price, volume)
}

func (r *Runner) place(side orderbookv1.Side, price, volume int64) int64 {
	if price <= 0 || volume <= 0 {
		return -1
	}
	order, err := r.repo.PlaceOrder(r.book, orderbookv1.NewOrder(r.account, price, volume), side)
	if err != nil {
		if r.logger != nil {
			r.logger.Debug("strategy order rejected",
				logger.Field{Key: "account", Value: r.account},
				logger.Field{Key: "book", Value: r.book.Name()},
				logger.Field{Key: "error", Value: err.Error()},
			)
		}
		return -1
	}
	return order.ID
}

// Read returns one market statistic by selector; unknown selectors and
// absent quotes read as -1.
func (r *Runner) Read(selector int64) int64 {
	switch selector {
	case vm.ReadLastPrice:
		return r.book.LastPrice()
	case vm.ReadTopBidPrice:
		if top, ok := r.book.TopBid(); ok {
			return top.Price
		}
	case vm.ReadTopBidVolume:
		if top, ok := r.book.TopBid(); ok {
			return top.Volume
		}
	case vm.ReadTopAskPrice:
		if top, ok := r.book.TopAsk(); ok {
			return top.Price
		}
	case vm.ReadTopAskVolume:
		if top, ok := r.book.TopAsk(); ok {
			return top.Volume
		}
	case vm.ReadTick:
		return r.repo.Tick()
	}
	return -1
}
