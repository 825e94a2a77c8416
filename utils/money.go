package utils

import "github.com/shopspring/decimal"

// Money converts a stored amount into a decimal for arithmetic.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Float rounds d to cents and returns it as the stored float representation.
func Float(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// RoundToCents rounds value half away from zero to cents (2.345 -> 2.35).
func RoundToCents(value float64) float64 {
	return Float(Money(value))
}
