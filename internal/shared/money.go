package shared

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MinorUnit is the smallest representable currency amount (one paisa).
const MinorUnit = 0.01

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EqualAmount reports whether two amounts differ by less than one minor unit.
func EqualAmount(a, b float64) bool {
	return math.Abs(a-b) < MinorUnit
}

var amountPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatAmount renders an amount with Indian digit grouping for narrations
// and audit metadata. Display only, never used in balance math.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}
