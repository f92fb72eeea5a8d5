package cart

import (
	"time"

	"github.com/nursingcollective/cartengine/pkg/enums"
	"github.com/shopspring/decimal"
)

// Item is one cart line. ProductID is unique within a cart.
type Item struct {
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	ProductType enums.ProductType `json:"product_type"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	AddedAt     time.Time         `json:"added_at"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an insertion-ordered list of lines with derived totals.
// Build it with NewCart so Subtotal and ItemCount always match Items.
type Cart struct {
	Items     []Item          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

// NewCart copies items, reads quantities below one as one, and derives the
// subtotal and item count.
func NewCart(items []Item) Cart {
	out := make([]Item, 0, len(items))
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
		out = append(out, item)
	}
	return Cart{Items: out, Subtotal: subtotal, ItemCount: count}
}

// EmptyCart returns a cart with no lines.
func EmptyCart() Cart {
	return NewCart(nil)
}

func (c Cart) Clone() Cart {
	return NewCart(c.Items)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the index of productID or -1.
func (c Cart) Find(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Contains(productID string) bool {
	return c.Find(productID) >= 0
}

// ProductIDs lists line product ids in cart order.
func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

// Result tags how a best-effort read resolved. Cause is set for degraded and
// failed outcomes.
type Result struct {
	Cart    Cart
	Outcome enums.Outcome
	Cause   error
}

func success(c Cart) Result {
	return Result{Cart: c, Outcome: enums.OutcomeSuccess}
}

func degraded(c Cart, cause error) Result {
	return Result{Cart: c, Outcome: enums.OutcomeDegraded, Cause: cause}
}

func failed(c Cart, cause error) Result {
	return Result{Cart: c, Outcome: enums.OutcomeFailed, Cause: cause}
}

func (r Result) OK() bool {
	return r.Outcome == enums.OutcomeSuccess
}

// AddItemInput carries a new line. Quantity zero means one.
type AddItemInput struct {
	ProductID   string            `json:"product_id" validate:"required,max=128"`
	ProductName string            `json:"product_name" validate:"omitempty,max=255"`
	ProductType enums.ProductType `json:"product_type" validate:"required,product_type"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity" validate:"gte=0"`
}

// CheckoutInput holds the optional checkout parameters. Email is required for guests.
type CheckoutInput struct {
	Email      string `json:"email" validate:"omitempty,email"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

// CheckoutRequest is what the remote store receives.
type CheckoutRequest struct {
	Items      []Item
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the hosted checkout the caller redirects to.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

// VerifyInput identifies a completed payment.
type VerifyInput struct {
	PaymentIntent string
	SessionID     string
}

func (v VerifyInput) IsZero() bool {
	return v.PaymentIntent == "" && v.SessionID == ""
}

// OrderLine is one purchased product on an order.
type OrderLine struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
}

// Order is a placed order as reported by the remote store.
type Order struct {
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id,omitempty"`
	CustomerEmail  string          `json:"customer_email,omitempty"`
	Items          []OrderLine     `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

// OrderVerification is the result of checking a payment after checkout.
type OrderVerification struct {
	Status  enums.VerificationStatus `json:"status"`
	Order   *Order                   `json:"order,omitempty"`
	Message string                   `json:"message,omitempty"`
}

func (v OrderVerification) Confirmed() bool {
	return v.Status == enums.VerificationStatusConfirmed
}

// Purchase is a product the signed-in user already owns.
type Purchase struct {
	ProductID   string     `json:"product_id"`
	ProductName string     `json:"product_name,omitempty"`
	ProductType string     `json:"product_type,omitempty"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}
