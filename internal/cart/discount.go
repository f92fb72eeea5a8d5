package cart

import (
	"github.com/nursingcollective/cartengine/internal/pricing"
	"github.com/nursingcollective/cartengine/pkg/enums"
	"github.com/shopspring/decimal"
)

// DiscountSummary splits a cart into discount-eligible individual guides and
// everything else.
type DiscountSummary struct {
	IndividualGuideCount int                   `json:"individual_guide_count"`
	BulkDiscount         pricing.BulkDiscount  `json:"bulk_discount"`
	OtherItemsTotal      decimal.Decimal       `json:"other_items_total"`
	OriginalSubtotal     decimal.Decimal       `json:"original_subtotal"`
	DiscountedSubtotal   decimal.Decimal       `json:"discounted_subtotal"`
	TotalDiscount        decimal.Decimal       `json:"total_discount"`
	HasDiscount          bool                  `json:"has_discount"`
	NextTier             *pricing.NextTierInfo `json:"next_tier"`
}

// Summarize prices c. Only individual guides count toward a tier; package
// products are added back at their line totals.
func Summarize(c Cart) DiscountSummary {
	guides := 0
	other := decimal.Zero
	for _, item := range c.Items {
		if item.ProductType == enums.ProductTypeIndividual {
			guides += item.Quantity
			continue
		}
		other = other.Add(item.LineTotal())
	}

	bulk := pricing.CalculateBulkDiscount(guides)
	return DiscountSummary{
		IndividualGuideCount: guides,
		BulkDiscount:         bulk,
		OtherItemsTotal:      other.Round(2),
		OriginalSubtotal:     bulk.OriginalTotal.Add(other).Round(2),
		DiscountedSubtotal:   bulk.DiscountedTotal.Add(other).Round(2),
		TotalDiscount:        bulk.DiscountAmount,
		HasDiscount:          bulk.HasDiscount(),
		NextTier:             pricing.NextTier(guides),
	}
}

// DiscountInfo prices the current snapshot.
func (e *Engine) DiscountInfo() DiscountSummary {
	return Summarize(e.Snapshot())
}
