package controllers

import (
	"net/http"
	"strings"

	"github.com/nursingcollective/cartengine/api/responses"
	"github.com/nursingcollective/cartengine/api/validators"
	"github.com/nursingcollective/cartengine/internal/cart"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

type checkoutRequest struct {
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

func CartCheckout(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := engine.CreateCheckoutSession(r.Context(), cart.CheckoutInput{
			Email:      strings.TrimSpace(payload.Email),
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// CartVerifyCheckout checks the payment named by payment_intent or
// session_id. Pending and failed verifications are reported, not errors.
func CartVerifyCheckout(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paymentIntent, err := validators.ParseCheckoutRef(r, "payment_intent")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID, err := validators.ParseCheckoutRef(r, "session_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := cart.VerifyInput{PaymentIntent: paymentIntent, SessionID: sessionID}

		verification, err := engine.CompleteCheckout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, verification)
	}
}

func CartPurchases(engine CartEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, engine.Purchases(r.Context()))
	}
}

func CartHasPurchased(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"product_id": productID,
			"purchased":  engine.HasPurchased(r.Context(), productID),
		})
	}
}

func CartOrders(engine CartEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, engine.Orders(r.Context()))
	}
}
