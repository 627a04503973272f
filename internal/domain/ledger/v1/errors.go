package ledgerv1

import "fmt"

// InsufficientAssets is returned by order admission when the account's
// available balance does not cover the amount the order would lock. No
// state is mutated and no order id is assigned when it is returned.
type InsufficientAssets struct {
	Asset    string
	Required int64
}

func (e *InsufficientAssets) Error() string {
	return fmt.Sprintf("insufficient funds of %s, requested volume: %d", e.Asset, e.Required)
}
