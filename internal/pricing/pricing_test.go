package pricing

import (
	"testing"

	"handoff-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dp(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

func TestResolveTierSelection(t *testing.T) {
	tiers := []models.WholesaleTier{
		{MinQty: 10, Price: d(90), Label: "10+"},
		{MinQty: 50, Price: d(80), Label: "50+"},
	}

	cases := []struct {
		qty       int
		price     int64
		wholesale bool
		label     string
	}{
		{5, 100, false, ""},
		{10, 90, true, "10+"},
		{49, 90, true, "10+"},
		{50, 80, true, "50+"},
		{500, 80, true, "50+"},
	}

	for _, tc := range cases {
		res := Resolve(d(100), tiers, tc.qty, nil)
		assert.True(t, d(tc.price).Equal(res.Price), "qty=%d price=%s", tc.qty, res.Price)
		assert.Equal(t, tc.wholesale, res.IsWholesale, "qty=%d", tc.qty)
		assert.Equal(t, tc.label, res.TierLabel, "qty=%d", tc.qty)
	}
}

func TestResolveDiscountTotal(t *testing.T) {
	tiers := []models.WholesaleTier{{MinQty: 10, Price: d(90)}}

	res := Resolve(d(100), tiers, 12, nil)

	assert.True(t, d(120).Equal(res.DiscountTotal), "got %s", res.DiscountTotal)
	assert.True(t, d(1080).Equal(res.LineTotal(12)))
	assert.True(t, d(100).Equal(res.Basis))
}

func TestResolveTierMustDiscount(t *testing.T) {
	tiers := []models.WholesaleTier{{MinQty: 5, Price: d(120)}}

	res := Resolve(d(100), tiers, 5, nil)

	assert.True(t, d(100).Equal(res.Price))
	assert.False(t, res.IsWholesale)
	assert.True(t, res.DiscountTotal.IsZero())
	assert.Nil(t, res.TierLabelPtr())
}

func TestResolveHighestThresholdOnlyCandidate(t *testing.T) {
	// The 50+ tier is met but does not discount; the 10+ tier is not
	// considered once a higher threshold matched.
	tiers := []models.WholesaleTier{
		{MinQty: 10, Price: d(90)},
		{MinQty: 50, Price: d(110)},
	}

	res := Resolve(d(100), tiers, 60, nil)

	assert.True(t, d(100).Equal(res.Price))
	assert.False(t, res.IsWholesale)
}

func TestResolveSizeOverride(t *testing.T) {
	t.Run("tier beats size price", func(t *testing.T) {
		res := Resolve(d(100), []models.WholesaleTier{{MinQty: 10, Price: d(140)}}, 10, dp(150))
		assert.True(t, d(140).Equal(res.Price))
		assert.True(t, res.IsWholesale)
		assert.True(t, d(100).Equal(res.DiscountTotal))
	})

	t.Run("tier above size price is rejected", func(t *testing.T) {
		res := Resolve(d(100), []models.WholesaleTier{{MinQty: 10, Price: d(160)}}, 10, dp(150))
		assert.True(t, d(150).Equal(res.Price))
		assert.False(t, res.IsWholesale)
		assert.True(t, d(150).Equal(res.Basis))
	})
}

func TestResolveEdgeCases(t *testing.T) {
	t.Run("no tiers", func(t *testing.T) {
		res := Resolve(d(100), nil, 1000, nil)
		assert.True(t, d(100).Equal(res.Price))
		assert.False(t, res.IsWholesale)
	})

	t.Run("below every threshold", func(t *testing.T) {
		res := Resolve(d(100), []models.WholesaleTier{{MinQty: 3, Price: d(1)}}, 2, nil)
		assert.True(t, d(100).Equal(res.Price))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		res := Resolve(d(100), []models.WholesaleTier{{MinQty: 0, Price: d(1)}}, 0, nil)
		assert.True(t, d(100).Equal(res.Price))
		assert.True(t, res.DiscountTotal.IsZero())
	})

	t.Run("equal thresholds pick the cheapest", func(t *testing.T) {
		tiers := []models.WholesaleTier{
			{MinQty: 10, Price: d(95), Label: "a"},
			{MinQty: 10, Price: d(85), Label: "b"},
			{MinQty: 10, Price: d(90), Label: "c"},
		}
		res := Resolve(d(100), tiers, 10, nil)
		assert.True(t, d(85).Equal(res.Price))
		assert.Equal(t, "b", res.TierLabel)
	})

	t.Run("input order is not mutated", func(t *testing.T) {
		tiers := []models.WholesaleTier{{MinQty: 10, Price: d(90)}, {MinQty: 50, Price: d(80)}}
		Resolve(d(100), tiers, 60, nil)
		assert.Equal(t, 10, tiers[0].MinQty)
	})

	t.Run("fractional prices", func(t *testing.T) {
		price := decimal.RequireFromString("19.99")
		tiers := []models.WholesaleTier{{MinQty: 3, Price: decimal.RequireFromString("17.49")}}
		res := Resolve(price, tiers, 3, nil)
		assert.Equal(t, "7.5", res.DiscountTotal.String())
		assert.Equal(t, "52.47", res.LineTotal(3).String())
	})
}
