package controllers

import (
	"net/http"

	"github.com/nursingcollective/cartengine/api/responses"
	"github.com/nursingcollective/cartengine/api/validators"
	"github.com/nursingcollective/cartengine/internal/pricing"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

func CartDiscount(engine CartEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, engine.DiscountInfo())
	}
}

type bulkDiscountResponse struct {
	pricing.BulkDiscount
	NextTier *pricing.NextTierInfo `json:"next_tier"`
}

// CartBulkDiscount prices an arbitrary guide count without touching the cart.
func CartBulkDiscount(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := validators.ParseQueryInt(r, "count", 0, 0, maxBulkCount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulkDiscountResponse{
			BulkDiscount: engine.CalculateBulkDiscount(count),
			NextTier:     pricing.NextTier(count),
		})
	}
}
