// Package safe provides overflow-checked int64 arithmetic for balance and
// price computations. An overflow indicates a corrupted ledger invariant,
// so every function panics instead of returning an error.
package safe

import "math"

// Add returns a + b and panics on int64 overflow.
func Add(a, b int64) int64 {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		panic("safe: int64 addition overflow")
	}
	return a + b
}

// Sub returns a - b and panics on int64 overflow.
func Sub(a, b int64) int64 {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		panic("safe: int64 subtraction overflow")
	}
	return a - b
}

// Mul returns a * b and panics on int64 overflow.
func Mul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				panic("safe: int64 multiplication overflow")
			}
		} else if b < math.MinInt64/a {
			panic("safe: int64 multiplication overflow")
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				panic("safe: int64 multiplication overflow")
			}
		} else if a < math.MaxInt64/b {
			panic("safe: int64 multiplication overflow")
		}
	}
	return a * b
}
