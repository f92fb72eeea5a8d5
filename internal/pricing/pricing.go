// Package pricing implements the fixed-bundle bulk discount for individual
// study guides.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IndividualGuidePrice is the list price of one individual study guide.
var IndividualGuidePrice = decimal.RequireFromString("5.99")

// DiscountTier prices a bundle of MinQty guides at BundlePrice.
type DiscountTier struct {
	MinQty           int             `json:"min_qty"`
	BundlePrice      decimal.Decimal `json:"bundle_price"`
	SavingsPerBundle decimal.Decimal `json:"savings_per_bundle"`
}

// SavingsLabel renders the tier savings for display, e.g. "Save $9.90".
func (t DiscountTier) SavingsLabel() string {
	return "Save $" + t.SavingsPerBundle.StringFixed(2)
}

// ordered highest MinQty first
var tiers = []DiscountTier{
	{MinQty: 10, BundlePrice: decimal.NewFromInt(50), SavingsPerBundle: decimal.RequireFromString("9.90")},
	{MinQty: 5, BundlePrice: decimal.NewFromInt(25), SavingsPerBundle: decimal.RequireFromString("4.95")},
	{MinQty: 3, BundlePrice: decimal.NewFromInt(15), SavingsPerBundle: decimal.RequireFromString("2.97")},
}

// Tiers returns a copy of the tier table, highest MinQty first.
func Tiers() []DiscountTier {
	out := make([]DiscountTier, len(tiers))
	copy(out, tiers)
	return out
}

// BulkDiscount is the outcome of pricing a number of individual guides.
type BulkDiscount struct {
	GuideCount      int             `json:"guide_count"`
	OriginalTotal   decimal.Decimal `json:"original_total"`
	DiscountedTotal decimal.Decimal `json:"discounted_total"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	PerItemPrice    decimal.Decimal `json:"per_item_price"`
	TierApplied     *DiscountTier   `json:"tier_applied"`
	SavingsLabel    string          `json:"savings_label,omitempty"`
	BundleQty       int             `json:"bundle_qty"`
	ExtraItems      int             `json:"extra_items"`
}

// HasDiscount reports whether a tier reduced the total.
func (b BulkDiscount) HasDiscount() bool {
	return b.DiscountAmount.IsPositive()
}

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateBulkDiscount prices count individual guides. The best tier covers
// exactly MinQty guides at the bundle price; every guide beyond it is charged
// at full price. Negative counts price as zero.
func CalculateBulkDiscount(count int) BulkDiscount {
	if count < 0 {
		count = 0
	}
	original := IndividualGuidePrice.Mul(decimal.NewFromInt(int64(count)))

	result := BulkDiscount{
		GuideCount:      count,
		OriginalTotal:   cents(original),
		DiscountedTotal: cents(original),
		DiscountAmount:  decimal.Zero,
		PerItemPrice:    IndividualGuidePrice,
	}

	tier, ok := bestTier(count)
	if !ok {
		return result
	}

	extra := count - tier.MinQty
	discounted := tier.BundlePrice.Add(IndividualGuidePrice.Mul(decimal.NewFromInt(int64(extra))))

	result.DiscountedTotal = cents(discounted)
	result.DiscountAmount = cents(original.Sub(discounted))
	result.PerItemPrice = cents(discounted.Div(decimal.NewFromInt(int64(count))))
	result.TierApplied = &tier
	result.SavingsLabel = tier.SavingsLabel()
	result.BundleQty = tier.MinQty
	result.ExtraItems = extra
	return result
}

func bestTier(count int) (DiscountTier, bool) {
	for _, tier := range tiers {
		if count >= tier.MinQty {
			return tier, true
		}
	}
	return DiscountTier{}, false
}

// NextTierInfo describes the closest tier the cart has not reached yet.
type NextTierInfo struct {
	Tier         DiscountTier `json:"tier"`
	SavingsLabel string       `json:"savings_label"`
	GuidesNeeded int          `json:"guides_needed"`
	Message      string       `json:"message"`
}

// NextTier returns the lowest tier above count, or nil once the top tier is reached.
func NextTier(count int) *NextTierInfo {
	if count < 0 {
		count = 0
	}
	for i := len(tiers) - 1; i >= 0; i-- {
		tier := tiers[i]
		if count >= tier.MinQty {
			continue
		}
		needed := tier.MinQty - count
		noun := "guide"
		if needed > 1 {
			noun = "guides"
		}
		return &NextTierInfo{
			Tier:         tier,
			SavingsLabel: tier.SavingsLabel(),
			GuidesNeeded: needed,
			Message:      fmt.Sprintf("Add %d more %s to get %d for $%s!", needed, noun, tier.MinQty, tier.BundlePrice.String()),
		}
	}
	return nil
}
