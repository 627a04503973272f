package ledgerv1

// Tx is the immutable record of one executed fill. It is appended to a
// book's trade history and broadcast to feed subscribers; never mutated.
type Tx struct {
	Time   int64 `json:"time"`
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}
