package domain

import "fmt"

// Money is a monetary amount in euro cents. Integer arithmetic keeps ledger
// sums exact; the regulator's forms use two decimal places.
type Money int64

// Cents constructs a Money value from a raw cent count.
func Cents(n int64) Money { return Money(n) }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money { return m + other }

// String renders the amount as euros with two decimals, e.g. "1234.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
