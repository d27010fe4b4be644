// Package pricing computes order totals from line items, addons and an
// optional percentage discount. It is pure: no I/O, no clock, no rounding.
package pricing

import "github.com/shopspring/decimal"

// Line is the priced shape of one order line item.
type Line struct {
	Price  decimal.Decimal
	Addons []decimal.Decimal
}

// Discount holds the terms that affect pricing.
type Discount struct {
	// Percentage is a fraction: 0.1 means 10%.
	Percentage           decimal.Decimal
	RequiresVerification bool
}

// Result is the outcome of Compute.
type Result struct {
	Raw         decimal.Decimal
	Total       decimal.Decimal
	AutoApplied bool
}

// Compute sums every line price and every nested addon price. A discount that
// does not require verification and has a positive percentage reduces the
// total immediately; any other discount leaves the total untouched so it can
// be applied explicitly later.
//
// Inputs are expected to be validated by the caller, amounts with InRange.
func Compute(lines []Line, d *Discount) Result {
	raw := decimal.Zero
	for _, l := range lines {
		raw = raw.Add(LineTotal(l))
	}

	res := Result{Raw: raw, Total: raw}
	if d != nil && !d.RequiresVerification && d.Percentage.IsPositive() {
		res.Total = ApplyPercentage(raw, d.Percentage)
		res.AutoApplied = true
	}
	return res
}

// LineTotal returns the line price plus all of its addon prices.
func LineTotal(l Line) decimal.Decimal {
	sum := l.Price
	for _, a := range l.Addons {
		sum = sum.Add(a)
	}
	return sum
}

// ApplyPercentage returns total − total × pct.
func ApplyPercentage(total, pct decimal.Decimal) decimal.Decimal {
	return total.Sub(total.Mul(pct))
}

// Amount limits accepted by InRange.
const (
	MaxScale         = 4
	MaxIntegerDigits = 12
)

// InRange reports whether d has at most MaxScale fractional digits and at
// most MaxIntegerDigits integer digits. It inspects the exponent before the
// coefficient, so extreme exponents are rejected without expanding them.
func InRange(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp < -MaxScale || exp > MaxIntegerDigits {
		return false
	}
	return d.NumDigits()+exp <= MaxIntegerDigits
}
