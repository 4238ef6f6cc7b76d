// Package pricing resolves the effective unit price of a cart line. It is the
// single source of truth for prices shown in the cart, on a transfer lookup and
// on the committed order, so it must stay free of I/O and caching.
package pricing

import (
	"sort"

	"handoff-service/internal/models"

	"github.com/shopspring/decimal"
)

// Result is the price of one line at a given quantity.
type Result struct {
	Price         decimal.Decimal
	Basis         decimal.Decimal
	IsWholesale   bool
	TierLabel     string
	DiscountTotal decimal.Decimal
}

// LineTotal is Price * quantity.
func (r Result) LineTotal(quantity int) decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

// TierLabelPtr returns nil for a non-wholesale price.
func (r Result) TierLabelPtr() *string {
	if !r.IsWholesale {
		return nil
	}
	label := r.TierLabel
	return &label
}

// Resolve prices quantity units. The basis is sizeOverride when set, otherwise
// basePrice. The tier with the highest MinQty not above quantity is the only
// candidate, and it applies only when strictly cheaper than the basis.
func Resolve(basePrice decimal.Decimal, tiers []models.WholesaleTier, quantity int, sizeOverride *decimal.Decimal) Result {
	basis := basePrice
	if sizeOverride != nil {
		basis = *sizeOverride
	}

	res := Result{Price: basis, Basis: basis, DiscountTotal: decimal.Zero}
	if quantity <= 0 {
		return res
	}

	candidate, ok := selectTier(tiers, quantity)
	if !ok || !candidate.Price.LessThan(basis) {
		return res
	}

	res.Price = candidate.Price
	res.IsWholesale = true
	res.TierLabel = candidate.Label
	res.DiscountTotal = basis.Sub(candidate.Price).Mul(decimal.NewFromInt(int64(quantity)))
	return res
}

// selectTier returns the first tier met after ordering by MinQty descending.
// Equal thresholds order by price ascending, then label, so the cheapest of
// the tied tiers is the candidate.
func selectTier(tiers []models.WholesaleTier, quantity int) (models.WholesaleTier, bool) {
	if len(tiers) == 0 {
		return models.WholesaleTier{}, false
	}

	sorted := make([]models.WholesaleTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MinQty != sorted[j].MinQty {
			return sorted[i].MinQty > sorted[j].MinQty
		}
		if c := sorted[i].Price.Cmp(sorted[j].Price); c != 0 {
			return c < 0
		}
		return sorted[i].Label < sorted[j].Label
	})

	for _, tier := range sorted {
		if tier.MinQty <= quantity {
			return tier, true
		}
	}
	return models.WholesaleTier{}, false
}
