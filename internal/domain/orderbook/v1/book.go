package orderbookv1

import (
	"sort"
	"sync"

	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
)

// Settler executes balance movement on behalf of the book. The repository
// implements it; the book itself never touches account state.
//
// SettleTrade applies one fill atomically: it increases the filled volume
// on both orders and moves the base and quote legs between the two
// accounts. It cannot fail recoverably: both sides were reserved at
// admission time, so any insufficiency is a programming bug and panics.
//
// ReleaseOrder returns the outstanding reservation of a cancelled or
// expired order to its account.
type Settler interface {
	SettleTrade(bid, ask *Order, base, quote string, price, volume int64)
	ReleaseOrder(order *Order, base, quote string)
}

// Level is one aggregated price level of a book side.
type Level struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

// Book is the order book of a single instrument pair. Bids are kept sorted
// by (price descending, id ascending), asks by (price ascending, id
// ascending), so the matching scan needs no sort and ties always break in
// favor of the earlier arrival.
//
// The book may rest crossed between ticks: matching is not continuous, it
// runs only when Match is invoked.
type Book struct {
	base  string
	quote string
	name  string

	mu        sync.Mutex
	bids      []*Order
	asks      []*Order
	lastPrice int64
	history   []ledgerv1.Tx
	feed      *Feed
}

// NewBook creates an empty book for the given pair.
func NewBook(base, quote string) *Book {
	return &Book{
		base:  base,
		quote: quote,
		name:  base + "/" + quote,
		feed:  NewFeed(),
	}
}

// Base returns the asset being traded.
func (b *Book) Base() string { return b.base }

// Quote returns the asset the base is priced in.
func (b *Book) Quote() string { return b.quote }

// Name returns the pair name, e.g. "BTC/USD".
func (b *Book) Name() string { return b.name }

// Feed returns the book's trade feed.
func (b *Book) Feed() *Feed { return b.feed }

// Insert adds an admitted order to its side, keeping priority order.
// The order must already carry its id and side.
func (b *Book) Insert(order *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if order.Side == SideBid {
		idx := sort.Search(len(b.bids), func(i int) bool {
			return bidBefore(order, b.bids[i])
		})
		b.bids = append(b.bids, nil)
		copy(b.bids[idx+1:], b.bids[idx:])
		b.bids[idx] = order
		return
	}

	idx := sort.Search(len(b.asks), func(i int) bool {
		return askBefore(order, b.asks[i])
	})
	b.asks = append(b.asks, nil)
	copy(b.asks[idx+1:], b.asks[idx:])
	b.asks[idx] = order
}

// bidBefore reports whether a has priority over b on the bid side:
// higher price first, earlier arrival at equal price.
func bidBefore(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.ID < b.ID
}

// askBefore reports whether a has priority over b on the ask side:
// lower price first, earlier arrival at equal price.
func askBefore(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.ID < b.ID
}

// Cancel removes a resting order by id and returns it. The caller is
// responsible for releasing its outstanding reservation.
func (b *Book) Cancel(orderID int64) (*Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, o := range b.bids {
		if o.ID == orderID {
			b.bids = append(b.bids[:i], b.bids[i+1:]...)
			return o, true
		}
	}
	for i, o := range b.asks {
		if o.ID == orderID {
			b.asks = append(b.asks[:i], b.asks[i+1:]...)
			return o, true
		}
	}
	return nil, false
}

// Match crosses compatible orders at the given tick and returns the number
// of fills executed. Expired orders are cancelled first, with their
// reservations released through the settler.
//
// The scan walks bids in priority order and, per bid, asks in priority
// order. Both sides are sorted, so the first time the current bid's price
// is below the best remaining ask's price no deeper pair can cross either
// and the whole scan stops. Execution price is the lower of the two limit
// prices; volume is the smaller remaining volume.
func (b *Book) Match(tick int64, settler Settler) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked(tick, settler)

	var matches int64
scan:
	for _, bidPeek := range b.bids {
		if bidPeek.IsFilled() {
			continue
		}
		for _, askPeek := range b.asks {
			if askPeek.IsFilled() {
				continue
			}
			if bidPeek.Price < askPeek.Price {
				break scan
			}

			volume := minVolume(bidPeek.Remaining(), askPeek.Remaining())
			price := executionPrice(bidPeek, askPeek)

			settler.SettleTrade(bidPeek, askPeek, b.base, b.quote, price, volume)

			tx := ledgerv1.Tx{Time: tick, Price: price, Volume: volume}
			b.lastPrice = price
			b.history = append(b.history, tx)
			b.feed.Publish(tx)
			matches++

			if bidPeek.IsFilled() {
				continue scan
			}
		}
	}

	b.bids = sweepFilled(b.bids)
	b.asks = sweepFilled(b.asks)

	return matches
}

// expireLocked cancels every order whose ttl has passed, releasing its
// outstanding reservation. Must be called with b.mu held.
func (b *Book) expireLocked(tick int64, settler Settler) {
	b.bids = b.releaseExpired(b.bids, tick, settler)
	b.asks = b.releaseExpired(b.asks, tick, settler)
}

func (b *Book) releaseExpired(side []*Order, tick int64, settler Settler) []*Order {
	kept := side[:0]
	for _, o := range side {
		if o.Expired(tick) {
			settler.ReleaseOrder(o, b.base, b.quote)
			continue
		}
		kept = append(kept, o)
	}
	return kept
}

// sweepFilled removes fully filled orders after a match pass.
func sweepFilled(side []*Order) []*Order {
	kept := side[:0]
	for _, o := range side {
		if !o.IsFilled() {
			kept = append(kept, o)
		}
	}
	return kept
}

// executionPrice picks the trade price of a crossing pair: the price of
// whichever order compares first by (price, arrival). When the prices
// differ that is the lower of the two, so the bidder never pays more than
// the asker demanded; at equal prices the earlier arrival sets it.
func executionPrice(bid, ask *Order) int64 {
	if bid.Price != ask.Price {
		if bid.Price < ask.Price {
			return bid.Price
		}
		return ask.Price
	}
	if bid.ID < ask.ID {
		return bid.Price
	}
	return ask.Price
}

func minVolume(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Bids returns the aggregated bid depth, best price first.
func (b *Book) Bids() []Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return aggregate(b.bids)
}

// Asks returns the aggregated ask depth, best price first.
func (b *Book) Asks() []Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return aggregate(b.asks)
}

// aggregate sums remaining volume per price level. The side is already in
// priority order, so equal prices are adjacent.
func aggregate(side []*Order) []Level {
	var levels []Level
	for _, o := range side {
		remaining := o.Remaining()
		if remaining == 0 {
			continue
		}
		if n := len(levels); n > 0 && levels[n-1].Price == o.Price {
			levels[n-1].Volume += remaining
			continue
		}
		levels = append(levels, Level{Price: o.Price, Volume: remaining})
	}
	return levels
}

// TopBid returns the best bid as a price/volume pair.
func (b *Book) TopBid() (Level, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.bids) == 0 {
		return Level{}, false
	}
	best := b.bids[0]
	return Level{Price: best.Price, Volume: best.Remaining()}, true
}

// TopAsk returns the best ask as a price/volume pair.
func (b *Book) TopAsk() (Level, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.asks) == 0 {
		return Level{}, false
	}
	best := b.asks[0]
	return Level{Price: best.Price, Volume: best.Remaining()}, true
}

// LastPrice returns the price of the most recent trade, 0 if none.
func (b *Book) LastPrice() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrice
}

// History returns a copy of the full trade history in chronological order.
func (b *Book) History() []ledgerv1.Tx {
	b.mu.Lock()
	defer b.mu.Unlock()

	history := make([]ledgerv1.Tx, len(b.history))
	copy(history, b.history)
	return history
}
