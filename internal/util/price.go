// Package util provides small numeric helpers shared by price validation and
// order placement.
package util

import (
	"math"
	"strconv"
)

// IntegerString returns the decimal digits of x's integer part, the form
// price reconstruction compares ("2345.6" -> "2345"). x is truncated toward
// zero, so 2345.9 also yields "2345".
func IntegerString(x float64) string {
	return strconv.FormatInt(int64(x), 10)
}

// IntegerDigits returns the number of decimal digits in x's integer part.
func IntegerDigits(x float64) int {
	return len(IntegerString(x))
}

// RoundToDigits rounds x to the given number of fractional digits, matching
// the precision the symbol quotes at.
func RoundToDigits(x float64, digits int) float64 {
	if digits < 0 {
		return x
	}
	pow := math.Pow(10, float64(digits))
	return math.Round(x*pow) / pow
}
