// Package view builds read-only projections of venue state for API
// responses and snapshots. Views copy everything they expose; holding one
// never retains a reference into live ledger or book state.
package view

import (
	ledgerv1 "github.com/diznq/core-se/internal/domain/ledger/v1"
	orderbookv1 "github.com/diznq/core-se/internal/domain/orderbook/v1"
)

// AccountView is a point-in-time projection of one account.
type AccountView struct {
	ID     string           `json:"id"`
	Extra  string           `json:"extra,omitempty"`
	Assets map[string]Asset `json:"assets"`
}

// Asset is one balance line of an account view.
type Asset struct {
	Balance  int64 `json:"balance"`
	Reserved int64 `json:"reserved"`
}

// NewAccountView projects an account. The account's maps are guarded by
// the repository accounting lock; callers must hold it while projecting a
// live account. Repository.AccountViews does so for the whole ledger.
func NewAccountView(account *ledgerv1.Account) AccountView {
	assets := make(map[string]Asset)
	for name, balance := range account.PublicAssets() {
		assets[name] = Asset{
			Balance:  balance,
			Reserved: account.Reserved(name),
		}
	}
	return AccountView{
		ID:     account.ID(),
		Extra:  account.Extra(),
		Assets: assets,
	}
}

// AggregateOrderView is one price level of a book side: the summed
// remaining volume of every resting order at that price.
type AggregateOrderView struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

// OrderBookView is a point-in-time projection of one order book.
type OrderBookView struct {
	Name      string               `json:"name"`
	Base      string               `json:"base"`
	Quote     string               `json:"quote"`
	Bids      []AggregateOrderView `json:"bids"`
	Asks      []AggregateOrderView `json:"asks"`
	TopBid    *AggregateOrderView  `json:"top_bid,omitempty"`
	TopAsk    *AggregateOrderView  `json:"top_ask,omitempty"`
	LastPrice int64                `json:"last_price"`
	History   []ledgerv1.Tx        `json:"history"`
}

// NewOrderBookView projects a book: aggregated price levels on both
// sides, best quotes, last trade price and trade history.
func NewOrderBookView(book *orderbookv1.Book) OrderBookView {
	v := OrderBookView{
		Name:      book.Name(),
		Base:      book.Base(),
		Quote:     book.Quote(),
		Bids:      levels(book.Bids()),
		Asks:      levels(book.Asks()),
		LastPrice: book.LastPrice(),
		History:   book.History(),
	}
	if top, ok := book.TopBid(); ok {
		v.TopBid = &AggregateOrderView{Price: top.Price, Volume: top.Volume}
	}
	if top, ok := book.TopAsk(); ok {
		v.TopAsk = &AggregateOrderView{Price: top.Price, Volume: top.Volume}
	}
	return v
}

func levels(side []orderbookv1.Level) []AggregateOrderView {
	out := make([]AggregateOrderView, 0, len(side))
	for _, level := range side {
		out = append(out, AggregateOrderView{Price: level.Price, Volume: level.Volume})
	}
	return out
}
