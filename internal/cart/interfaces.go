package cart

import (
	"context"
	"time"

	"github.com/nursingcollective/cartengine/pkg/enums"
	"github.com/shopspring/decimal"
)

// RemoteStore is the server-side cart owned by the REST API. Errors are
// expected to carry pkg/errors codes (NETWORK_ERROR, UNAUTHORIZED).
type RemoteStore interface {
	GetCart(ctx context.Context) (Cart, error)
	AddItem(ctx context.Context, item Item) (Cart, error)
	UpdateItem(ctx context.Context, productID string, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, productID string) (Cart, error)
	ClearCart(ctx context.Context) error
	MergeCart(ctx context.Context, items []Item) (Cart, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	VerifyOrder(ctx context.Context, input VerifyInput) (*OrderVerification, error)
	Purchases(ctx context.Context) ([]Purchase, error)
	HasPurchased(ctx context.Context, productID string) (bool, error)
	Orders(ctx context.Context) ([]Order, error)
}

// Authenticator reports whether a credential is currently established.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
}

// Event is a cart change worth reporting to analytics.
type Event struct {
	Type       enums.AnalyticsEventType
	Mode       enums.CartMode
	Items      []Item
	Value      decimal.Decimal
	OccurredAt time.Time
}

// EventSink receives cart events. Implementations must not block for long
// and must not call back into the engine.
type EventSink interface {
	Record(ctx context.Context, event Event)
}

// Clock is swapped in tests.
type Clock func() time.Time
