package revision

import (
	"math"

	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// MaxAmount bounds unit prices and quantities so every total stays finite
const MaxAmount = 1e12

const centsPlaces = 2

// RoundCents rounds an amount to two decimals, ties to even.
// The float is read through its shortest decimal form, so 0.135 rounds as 0.135.
// NaN and infinities are returned unchanged.
func RoundCents(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(centsPlaces).InexactFloat64()
}

// LineTotal returns quantity × unit price rounded to cents
func LineTotal(item entity.QuoteItem) float64 {
	return lineAmount(item).RoundBank(centsPlaces).InexactFloat64()
}

// CalculateTotal sums quantity × unit price over items and rounds once at the end
func CalculateTotal(items []entity.QuoteItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(lineAmount(it))
	}
	return sum.RoundBank(centsPlaces).InexactFloat64()
}

// Recompute returns a copy of items with TotalPrice derived from quantity and unit price
func Recompute(items []entity.QuoteItem) []entity.QuoteItem {
	out := entity.CloneItems(items)
	for i := range out {
		out[i].TotalPrice = LineTotal(out[i])
	}
	return out
}

func lineAmount(item entity.QuoteItem) decimal.Decimal {
	if !finite(item.Quantity) || !finite(item.UnitPrice) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitPrice))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// validAmount reports whether v is a finite amount in [0, MaxAmount]
func validAmount(v float64) bool {
	return finite(v) && v >= 0 && v <= MaxAmount
}
