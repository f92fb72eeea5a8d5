package cartapi

import (
	"github.com/shopspring/decimal"
)

// Amount is a money value that goes over the wire as a bare JSON number.
// Both numbers and quoted strings are accepted when decoding.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// CartItem is a cart line as the API sends and receives it.
type CartItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductType string `json:"product_type"`
	Price       Amount `json:"price"`
	Quantity    int    `json:"quantity"`
	AddedAt     string `json:"added_at,omitempty"`
}

// Cart is the body of GET /cart and the "cart" member of mutation responses.
type Cart struct {
	Items     []CartItem `json:"items"`
	Subtotal  Amount     `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

type cartEnvelope struct {
	Cart *Cart `json:"cart"`
}

type addItemRequest struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductType string `json:"product_type"`
	Price       Amount `json:"price"`
	Quantity    int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	Items []CartItem `json:"items"`
}

// CheckoutRequest is the body of POST /cart/checkout/create-session. Items
// and Email are only sent for guests.
type CheckoutRequest struct {
	Items      []CartItem `json:"items,omitempty"`
	Email      string     `json:"email,omitempty"`
	SuccessURL string     `json:"success_url,omitempty"`
	CancelURL  string     `json:"cancel_url,omitempty"`
}

type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type OrderItem struct {
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	Price       Amount `json:"price"`
}

type Order struct {
	OrderNumber    string      `json:"order_number"`
	UserID         string      `json:"user_id,omitempty"`
	CustomerEmail  string      `json:"customer_email,omitempty"`
	Items          []OrderItem `json:"items"`
	Subtotal       Amount      `json:"subtotal"`
	DiscountAmount Amount      `json:"discount_amount"`
	Total          Amount      `json:"total"`
	CreatedAt      string      `json:"created_at,omitempty"`
}

// VerifyResponse is the body of GET /cart/orders/verify.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Order   *Order `json:"order,omitempty"`
}

type Purchase struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	ProductType string `json:"product_type,omitempty"`
	PurchasedAt string `json:"purchased_at,omitempty"`
}

type PurchasesResponse struct {
	Purchases  []Purchase `json:"purchases"`
	ProductIDs []string   `json:"product_ids"`
}

type purchaseCheckResponse struct {
	Purchased bool `json:"purchased"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
