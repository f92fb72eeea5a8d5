package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nursingcollective/cartengine/api/responses"
	"github.com/nursingcollective/cartengine/api/validators"
	"github.com/nursingcollective/cartengine/internal/cart"
	"github.com/nursingcollective/cartengine/internal/pricing"
	"github.com/nursingcollective/cartengine/pkg/enums"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/logger"
)

// CartEngine is the slice of *cart.Engine the gateway drives.
type CartEngine interface {
	Mode(ctx context.Context) enums.CartMode
	GetCart(ctx context.Context) cart.Result
	AddItem(ctx context.Context, input cart.AddItemInput) (cart.Cart, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.Cart, error)
	RemoveItem(ctx context.Context, productID string) (cart.Cart, error)
	ClearCart(ctx context.Context) (cart.Cart, error)
	MergeGuestCart(ctx context.Context) cart.Result
	Login(ctx context.Context, establish func(ctx context.Context) error) cart.Result
	SyncFromServer(ctx context.Context) cart.Result
	DiscountInfo() cart.DiscountSummary
	CalculateBulkDiscount(count int) pricing.BulkDiscount
	CreateCheckoutSession(ctx context.Context, input cart.CheckoutInput) (*cart.CheckoutSession, error)
	CompleteCheckout(ctx context.Context, input cart.VerifyInput) (*cart.OrderVerification, error)
	Purchases(ctx context.Context) []cart.Purchase
	HasPurchased(ctx context.Context, productID string) bool
	Orders(ctx context.Context) []cart.Order
	NewlyAddedItems(ctx context.Context) []string
	ClearNewlyAdded(ctx context.Context)
}

const maxBulkCount = 10000

type cartResponse struct {
	Mode      enums.CartMode  `json:"mode"`
	Items     []cart.Item     `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

func newCartResponse(mode enums.CartMode, c cart.Cart) cartResponse {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{
		Mode:      mode,
		Items:     items,
		Subtotal:  c.Subtotal,
		ItemCount: c.ItemCount,
	}
}

type resultResponse struct {
	Cart    cartResponse  `json:"cart"`
	Outcome enums.Outcome `json:"outcome"`
	Warning *warning      `json:"warning,omitempty"`
}

type warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newResultResponse(mode enums.CartMode, res cart.Result) resultResponse {
	out := resultResponse{
		Cart:    newCartResponse(mode, res.Cart),
		Outcome: res.Outcome,
	}
	if res.Cause != nil {
		w := &warning{Code: string(pkgerrors.CodeInternal), Message: pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage}
		if typed := pkgerrors.As(res.Cause); typed != nil {
			w.Code = string(typed.Code())
			w.Message = pkgerrors.MetadataFor(typed.Code()).PublicMessage
			if m := typed.Message(); m != "" {
				w.Message = m
			}
		}
		out.Warning = w
	}
	return out
}

// writeResult reports best-effort reads. Degraded results are still 200 with
// a warning; failed ones map to the cause's status.
func writeResult(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, mode enums.CartMode, res cart.Result) {
	if res.Outcome == enums.OutcomeFailed && res.Cause != nil {
		responses.WriteError(ctx, logg, w, res.Cause)
		return
	}
	if res.Outcome == enums.OutcomeDegraded && logg != nil {
		logg.Warn(logg.WithFields(ctx, pkgerrors.Dump(res.Cause).Fields()), "cart.degraded")
	}
	responses.WriteSuccess(w, newResultResponse(mode, res))
}

func CartGet(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := engine.GetCart(r.Context())
		writeResult(r.Context(), logg, w, engine.Mode(r.Context()), res)
	}
}

type addItemRequest struct {
	ProductID   string          `json:"product_id" validate:"required,max=128"`
	ProductName string          `json:"product_name" validate:"omitempty,max=255"`
	ProductType string          `json:"product_type" validate:"required,product_type"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"gte=0,lte=1000"`
}

func (r addItemRequest) toInput() (cart.AddItemInput, error) {
	productType, err := enums.ParseProductType(r.ProductType)
	if err != nil {
		return cart.AddItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product type")
	}
	return cart.AddItemInput{
		ProductID:   validators.SanitizeString(r.ProductID, 128),
		ProductName: validators.SanitizeString(r.ProductName, 255),
		ProductType: productType,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}, nil
}

func CartAddItem(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := engine.AddItem(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(engine.Mode(r.Context()), c))
	}
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=1000"`
}

func CartUpdateItem(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := engine.UpdateQuantity(r.Context(), productID, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(engine.Mode(r.Context()), c))
	}
}

func CartRemoveItem(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := engine.RemoveItem(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(engine.Mode(r.Context()), c))
	}
}

func CartClear(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := engine.ClearCart(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(engine.Mode(r.Context()), c))
	}
}

func CartMerge(engine CartEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := engine.MergeGuestCart(r.Context())
		writeResult(r.Context(), logg, w, engine.Mode(r.Context()), res)
	}
}

func CartNewlyAdded(engine CartEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := engine.NewlyAddedItems(r.Context())
		if ids == nil {
			ids = []string{}
		}
		responses.WriteSuccess(w, map[string][]string{"product_ids": ids})
	}
}

func CartClearNewlyAdded(engine CartEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine.ClearNewlyAdded(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func productIDParam(r *http.Request) (string, error) {
	return validators.ProductID(chi.URLParam(r, "productID"))
}
