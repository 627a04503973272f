package orderbookv1

// Side marks an order as a bid (buy) or an ask (sell).
type Side int

const (
	// SideBid is a buy order, priced in the quote asset.
	SideBid Side = iota + 1
	// SideAsk is a sell order of the base asset.
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return "unknown"
	}
}

// Order is a resting bid or ask. The id is assigned by the repository at
// admission time, is unique for the repository's lifetime and doubles as
// the arrival priority: at equal price the lower id wins.
type Order struct {
	ID        int64  `json:"id"`
	Account   string `json:"account"`
	Side      Side   `json:"side"`
	Price     int64  `json:"price"`
	Requested int64  `json:"requested"`
	Filled    int64  `json:"filled"`

	// TTL is the absolute tick at which the order expires; 0 means never.
	TTL int64 `json:"ttl,omitempty"`
}

// NewOrder creates an unadmitted order. It has no id until the repository
// admits it.
func NewOrder(account string, price, volume int64) *Order {
	return &Order{
		Account:   account,
		Price:     price,
		Requested: volume,
	}
}

// Remaining returns the unfilled volume.
func (o *Order) Remaining() int64 {
	return o.Requested - o.Filled
}

// IsFilled reports whether the order has no remaining volume.
func (o *Order) IsFilled() bool {
	return o.Filled >= o.Requested
}

// Fill increases the filled volume. Filling beyond the requested volume is
// a matching bug and panics.
func (o *Order) Fill(volume int64) {
	if volume < 0 || o.Filled+volume > o.Requested {
		panic("orderbook: fill exceeds requested volume")
	}
	o.Filled += volume
}

// Expired reports whether the order's ttl has passed at the given tick.
func (o *Order) Expired(tick int64) bool {
	return o.TTL != 0 && o.TTL <= tick
}
