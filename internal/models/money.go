package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (e.g. 49.99) into the gateway's
// integer minor units (4999). Rounding is half-up so floating point noise
// like 49.999000000001 lands on the intended value.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts an integer minor-unit amount back to a major-unit
// price (2000 -> 20.00).
func FromMinorUnits(minor int64) float64 {
	f, _ := decimal.New(minor, -2).Float64()
	return f
}
