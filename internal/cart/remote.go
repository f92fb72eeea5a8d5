package cart

import (
	"context"
	"strings"
	"time"

	"github.com/nursingcollective/cartengine/pkg/cartapi"
	"github.com/nursingcollective/cartengine/pkg/enums"
)

// APIStore adapts the REST client to RemoteStore.
type APIStore struct {
	client *cartapi.Client
}

var _ RemoteStore = (*APIStore)(nil)

func NewAPIStore(client *cartapi.Client) *APIStore {
	return &APIStore{client: client}
}

func (s *APIStore) GetCart(ctx context.Context) (Cart, error) {
	return s.cart(s.client.GetCart(ctx))
}

func (s *APIStore) AddItem(ctx context.Context, item Item) (Cart, error) {
	return s.cart(s.client.AddItem(ctx, toWireItem(item)))
}

func (s *APIStore) UpdateItem(ctx context.Context, productID string, quantity int) (Cart, error) {
	return s.cart(s.client.UpdateItem(ctx, productID, quantity))
}

func (s *APIStore) RemoveItem(ctx context.Context, productID string) (Cart, error) {
	return s.cart(s.client.RemoveItem(ctx, productID))
}

func (s *APIStore) ClearCart(ctx context.Context) error {
	return s.client.ClearCart(ctx)
}

func (s *APIStore) MergeCart(ctx context.Context, items []Item) (Cart, error) {
	wire := make([]cartapi.CartItem, 0, len(items))
	for _, item := range items {
		wire = append(wire, toWireItem(item))
	}
	return s.cart(s.client.MergeCart(ctx, wire))
}

func (s *APIStore) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	wire := cartapi.CheckoutRequest{
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	for _, item := range req.Items {
		wire.Items = append(wire.Items, toWireItem(item))
	}
	session, err := s.client.CreateCheckoutSession(ctx, wire)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{URL: session.URL, SessionID: session.SessionID}, nil
}

func (s *APIStore) VerifyOrder(ctx context.Context, input VerifyInput) (*OrderVerification, error) {
	resp, err := s.client.VerifyOrder(ctx, input.PaymentIntent, input.SessionID)
	if err != nil {
		return nil, err
	}
	return toVerification(resp), nil
}

func (s *APIStore) Purchases(ctx context.Context) ([]Purchase, error) {
	resp, err := s.client.Purchases(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Purchase, 0, len(resp.Purchases))
	for _, p := range resp.Purchases {
		out = append(out, Purchase{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			ProductType: p.ProductType,
			PurchasedAt: parseTimePtr(p.PurchasedAt),
		})
	}
	return out, nil
}

func (s *APIStore) HasPurchased(ctx context.Context, productID string) (bool, error) {
	return s.client.HasPurchased(ctx, productID)
}

func (s *APIStore) Orders(ctx context.Context) ([]Order, error) {
	orders, err := s.client.Orders(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, fromWireOrder(o))
	}
	return out, nil
}

func (s *APIStore) cart(c *cartapi.Cart, err error) (Cart, error) {
	if err != nil {
		return Cart{}, err
	}
	if c == nil {
		return EmptyCart(), nil
	}
	items := make([]Item, 0, len(c.Items))
	for _, wire := range c.Items {
		items = append(items, fromWireItem(wire))
	}
	// Totals are derived locally; the server's subtotal is ignored.
	return NewCart(items), nil
}

func toWireItem(item Item) cartapi.CartItem {
	wire := cartapi.CartItem{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		ProductType: item.ProductType.String(),
		Price:       cartapi.NewAmount(item.Price),
		Quantity:    item.Quantity,
	}
	if !item.AddedAt.IsZero() {
		wire.AddedAt = item.AddedAt.UTC().Format(time.RFC3339)
	}
	return wire
}

func fromWireItem(wire cartapi.CartItem) Item {
	item := Item{
		ProductID:   wire.ProductID,
		ProductName: wire.ProductName,
		ProductType: enums.ProductType(wire.ProductType),
		Price:       wire.Price.Decimal,
		Quantity:    wire.Quantity,
	}
	if t := parseTimePtr(wire.AddedAt); t != nil {
		item.AddedAt = *t
	}
	return item
}

func fromWireOrder(o cartapi.Order) Order {
	lines := make([]OrderLine, 0, len(o.Items))
	for _, line := range o.Items {
		lines = append(lines, OrderLine{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.Price.Decimal,
		})
	}
	return Order{
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		CustomerEmail:  o.CustomerEmail,
		Items:          lines,
		Subtotal:       o.Subtotal.Decimal,
		DiscountAmount: o.DiscountAmount.Decimal,
		Total:          o.Total.Decimal,
		CreatedAt:      parseTimePtr(o.CreatedAt),
	}
}

func toVerification(resp *cartapi.VerifyResponse) *OrderVerification {
	if resp == nil {
		return &OrderVerification{Status: enums.VerificationStatusFailed}
	}
	out := &OrderVerification{Message: resp.Message}
	switch {
	case resp.Success && resp.Order != nil:
		order := fromWireOrder(*resp.Order)
		out.Status = enums.VerificationStatusConfirmed
		out.Order = &order
	case strings.EqualFold(resp.Status, string(enums.VerificationStatusPending)):
		out.Status = enums.VerificationStatusPending
	default:
		out.Status = enums.VerificationStatusFailed
	}
	return out
}

var wireTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// parseTimePtr accepts the few timestamp shapes the API emits and reads
// anything else as absent.
func parseTimePtr(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
