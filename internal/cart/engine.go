// Package cart is the cart engine: guest carts live in the local store,
// signed-in carts live behind the remote REST API, and the guest cart is
// merged into the remote one on login.
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nursingcollective/cartengine/internal/pricing"
	"github.com/nursingcollective/cartengine/pkg/enums"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/nursingcollective/cartengine/pkg/metrics"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultGuestCartKey = "florencebot_guest_cart"
	NewlyAddedKey       = "newlyAddedCartItems"
)

const (
	opGetCart        = "get_cart"
	opAddItem        = "add_item"
	opUpdateQuantity = "update_quantity"
	opRemoveItem     = "remove_item"
	opClearCart      = "clear_cart"
	opMerge          = "merge_guest_cart"
	opLogin          = "login"
	opCheckout       = "create_checkout_session"
	opVerify         = "complete_checkout"
	opSync           = "sync_from_server"
	opPurchases      = "purchases"
	opHasPurchased   = "has_purchased"
	opOrders         = "orders"
)

// Params wires the engine's collaborators. Remote, Local and Auth are required.
type Params struct {
	Remote       RemoteStore
	Local        storage.Store
	Auth         Authenticator
	Events       EventSink
	Metrics      *metrics.CartMetrics
	Logger       *logger.Logger
	GuestCartKey string
	Clock        Clock
}

// Engine is the single source of truth for one shopper's cart. Every
// operation runs through a one-slot queue so read-modify-write sequences on
// the guest cart cannot interleave.
type Engine struct {
	remote   RemoteStore
	local    storage.Store
	auth     Authenticator
	events   EventSink
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
	guestKey string
	now      Clock

	queue *semaphore.Weighted

	mu      sync.RWMutex
	current Cart
	seq     uint64

	subs registry
}

func New(p Params) (*Engine, error) {
	if p.Remote == nil {
		return nil, fmt.Errorf("remote store required")
	}
	if p.Local == nil {
		return nil, fmt.Errorf("local store required")
	}
	if p.Auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	key := p.GuestCartKey
	if key == "" {
		key = DefaultGuestCartKey
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		remote:   p.Remote,
		local:    p.Local,
		auth:     p.Auth,
		events:   p.Events,
		metrics:  p.Metrics,
		logg:     logg,
		guestKey: key,
		now:      clock,
		queue:    semaphore.NewWeighted(1),
		current:  EmptyCart(),
	}, nil
}

// Subscribe registers l for cart snapshots. The returned func unsubscribes;
// it is safe to call more than once and from inside a listener.
func (e *Engine) Subscribe(l Listener) func() {
	return e.subs.subscribe(l)
}

// Mode reports which backend currently owns the cart.
func (e *Engine) Mode(ctx context.Context) enums.CartMode {
	if e.auth.IsAuthenticated(ctx) {
		return enums.CartModeAuthenticated
	}
	return enums.CartModeGuest
}

// Snapshot returns a copy of the last cart the engine resolved.
func (e *Engine) Snapshot() Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Clone()
}

func (e *Engine) Items() []Item {
	return e.Snapshot().Items
}

func (e *Engine) ItemCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.ItemCount
}

func (e *Engine) Subtotal() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Subtotal
}

func (e *Engine) IsInCart(productID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Contains(productID)
}

func (e *Engine) setSnapshot(c Cart) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = c.Clone()
	e.seq++
	e.metrics.SetItems(c.ItemCount)
	return e.seq
}

func (e *Engine) scope(ctx context.Context, op string) (context.Context, bool) {
	authed := e.auth.IsAuthenticated(ctx)
	mode := enums.CartModeGuest
	if authed {
		mode = enums.CartModeAuthenticated
	}
	ctx = e.logg.WithCartMode(ctx, mode.String())
	ctx = e.logg.WithOperation(ctx, op)
	return ctx, authed
}

// exclusive holds the queue slot while fn runs. The slot is released even
// when fn panics.
func (e *Engine) exclusive(ctx context.Context, fn func()) error {
	if err := e.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.queue.Release(1)
	fn()
	return nil
}

// mutate runs fn under the queue, records the resulting snapshot and
// notifies subscribers once the queue is released.
func (e *Engine) mutate(ctx context.Context, op string, fn func(ctx context.Context, authed bool) (Cart, error)) (Cart, error) {
	var (
		cart Cart
		err  error
		seq  uint64
	)
	if qerr := e.exclusive(ctx, func() {
		scoped, authed := e.scope(ctx, op)
		cart, err = fn(scoped, authed)
		if err == nil {
			seq = e.setSnapshot(cart)
		}
	}); qerr != nil {
		e.metrics.IncOperation(op, enums.OutcomeFailed.String())
		return Cart{}, qerr
	}

	if err != nil {
		e.metrics.IncOperation(op, enums.OutcomeFailed.String())
		return Cart{}, err
	}
	e.metrics.IncOperation(op, enums.OutcomeSuccess.String())
	e.subs.publish(seq, cart)
	return cart.Clone(), nil
}

// resolve is mutate for best-effort operations. A failed Result leaves the
// snapshot alone; notify=false records the snapshot silently.
func (e *Engine) resolve(ctx context.Context, op string, notify bool, fn func(ctx context.Context, authed bool) Result) Result {
	var (
		res Result
		seq uint64
	)
	if err := e.exclusive(ctx, func() {
		scoped, authed := e.scope(ctx, op)
		res = fn(scoped, authed)
		if res.Outcome != enums.OutcomeFailed {
			seq = e.setSnapshot(res.Cart)
		}
	}); err != nil {
		e.metrics.IncOperation(op, enums.OutcomeFailed.String())
		return failed(e.Snapshot(), err)
	}

	e.metrics.IncOperation(op, res.Outcome.String())
	if seq > 0 && notify {
		e.subs.publish(seq, res.Cart)
	}
	res.Cart = res.Cart.Clone()
	return res
}

func (e *Engine) emit(ctx context.Context, typ enums.AnalyticsEventType, authed bool, items []Item) {
	if e.events == nil || len(items) == 0 {
		return
	}
	mode := enums.CartModeGuest
	if authed {
		mode = enums.CartModeAuthenticated
	}
	lines := NewCart(items)
	e.events.Record(ctx, Event{
		Type:       typ,
		Mode:       mode,
		Items:      lines.Items,
		Value:      lines.Subtotal,
		OccurredAt: e.now().UTC(),
	})
}

func (e *Engine) timed(op string) func() {
	start := time.Now()
	return func() {
		e.metrics.ObserveRemote(op, time.Since(start))
	}
}

func (e *Engine) warn(ctx context.Context, msg string, err error) {
	e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), msg)
}

// GetCart loads the cart from whichever backend owns it. A remote failure
// degrades to the local guest cart and unreadable local data degrades to an
// empty cart; neither is returned as an error. Subscribers are always notified.
func (e *Engine) GetCart(ctx context.Context) Result {
	return e.resolve(ctx, opGetCart, true, e.getCartLocked)
}

func (e *Engine) getCartLocked(ctx context.Context, authed bool) Result {
	if authed {
		done := e.timed(opGetCart)
		remote, err := e.remote.GetCart(ctx)
		done()
		if err != nil {
			e.warn(ctx, "remote cart unavailable, falling back to guest cart", err)
			return degraded(e.loadGuest(ctx), err)
		}
		return success(NewCart(remote.Items))
	}

	guest, err := e.readGuest(ctx)
	if err != nil {
		e.warn(ctx, "guest cart unreadable, treating as empty", err)
		return degraded(guest, err)
	}
	return success(guest)
}

// AddItem adds input to the cart. On the guest path an existing line's
// quantity is increased; the remote store owns that rule when signed in.
func (e *Engine) AddItem(ctx context.Context, input AddItemInput) (Cart, error) {
	if err := validateAddItem(input); err != nil {
		e.metrics.IncOperation(opAddItem, enums.OutcomeFailed.String())
		return Cart{}, err
	}
	quantity := input.Quantity
	if quantity < 1 {
		quantity = 1
	}

	return e.mutate(ctx, opAddItem, func(ctx context.Context, authed bool) (Cart, error) {
		item := Item{
			ProductID:   input.ProductID,
			ProductName: input.ProductName,
			ProductType: input.ProductType,
			Price:       input.Price,
			Quantity:    quantity,
			AddedAt:     e.now().UTC(),
		}

		if authed {
			done := e.timed(opAddItem)
			remote, err := e.remote.AddItem(ctx, item)
			done()
			if err != nil {
				return Cart{}, pkgerrors.Wrap(pkgerrors.CodeCartOperation, err, "add item failed")
			}
			e.emit(ctx, enums.AnalyticsEventItemAdded, authed, []Item{item})
			return NewCart(remote.Items), nil
		}

		cart := e.loadGuest(ctx)
		items := cart.Items
		if idx := cart.Find(item.ProductID); idx >= 0 {
			items[idx].Quantity += quantity
		} else {
			items = append(items, item)
		}
		cart = NewCart(items)
		e.saveGuest(ctx, cart)
		e.emit(ctx, enums.AnalyticsEventItemAdded, authed, []Item{item})
		return cart, nil
	})
}

// UpdateQuantity sets a line's quantity exactly. Quantities below one remove
// the line; unknown products are left alone on the guest path.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) (Cart, error) {
	if productID == "" {
		e.metrics.IncOperation(opUpdateQuantity, enums.OutcomeFailed.String())
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return e.mutate(ctx, opRemoveItem, func(ctx context.Context, authed bool) (Cart, error) {
			return e.removeLocked(ctx, authed, productID)
		})
	}

	return e.mutate(ctx, opUpdateQuantity, func(ctx context.Context, authed bool) (Cart, error) {
		if authed {
			done := e.timed(opUpdateQuantity)
			remote, err := e.remote.UpdateItem(ctx, productID, quantity)
			done()
			if err != nil {
				return Cart{}, pkgerrors.Wrap(pkgerrors.CodeCartOperation, err, "update quantity failed")
			}
			return NewCart(remote.Items), nil
		}

		cart := e.loadGuest(ctx)
		idx := cart.Find(productID)
		if idx < 0 {
			return cart, nil
		}
		cart.Items[idx].Quantity = quantity
		cart = NewCart(cart.Items)
		e.saveGuest(ctx, cart)
		return cart, nil
	})
}

// RemoveItem drops a line. Removing an absent product is not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID string) (Cart, error) {
	if productID == "" {
		e.metrics.IncOperation(opRemoveItem, enums.OutcomeFailed.String())
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return e.mutate(ctx, opRemoveItem, func(ctx context.Context, authed bool) (Cart, error) {
		return e.removeLocked(ctx, authed, productID)
	})
}

func (e *Engine) removeLocked(ctx context.Context, authed bool, productID string) (Cart, error) {
	if authed {
		removed := Item{ProductID: productID, Quantity: 1}
		e.mu.RLock()
		if idx := e.current.Find(productID); idx >= 0 {
			removed = e.current.Items[idx]
		}
		e.mu.RUnlock()

		done := e.timed(opRemoveItem)
		remote, err := e.remote.RemoveItem(ctx, productID)
		done()
		if err != nil {
			return Cart{}, pkgerrors.Wrap(pkgerrors.CodeCartOperation, err, "remove item failed")
		}
		e.emit(ctx, enums.AnalyticsEventItemRemoved, authed, []Item{removed})
		return NewCart(remote.Items), nil
	}

	cart := e.loadGuest(ctx)
	idx := cart.Find(productID)
	if idx < 0 {
		return cart, nil
	}
	removed := cart.Items[idx]
	items := append(cart.Items[:idx:idx], cart.Items[idx+1:]...)
	cart = NewCart(items)
	e.saveGuest(ctx, cart)
	e.emit(ctx, enums.AnalyticsEventItemRemoved, authed, []Item{removed})
	return cart, nil
}

// ClearCart empties the cart: a remote clear when signed in, otherwise the
// guest cart key is deleted.
func (e *Engine) ClearCart(ctx context.Context) (Cart, error) {
	return e.mutate(ctx, opClearCart, func(ctx context.Context, authed bool) (Cart, error) {
		if authed {
			done := e.timed(opClearCart)
			err := e.remote.ClearCart(ctx)
			done()
			if err != nil {
				return Cart{}, pkgerrors.Wrap(pkgerrors.CodeCartOperation, err, "clear cart failed")
			}
			return EmptyCart(), nil
		}
		e.deleteGuest(ctx)
		return EmptyCart(), nil
	})
}

// MergeGuestCart hands the guest cart to the remote store and deletes it
// locally once the remote store accepts it. An empty guest cart only reads
// the remote cart, so calling this again after a successful merge sends
// nothing.
func (e *Engine) MergeGuestCart(ctx context.Context) Result {
	return e.resolve(ctx, opMerge, true, e.mergeLocked)
}

func (e *Engine) mergeLocked(ctx context.Context, authed bool) Result {
	guest := e.loadGuest(ctx)
	if guest.IsEmpty() {
		return e.getCartLocked(ctx, authed)
	}

	if !authed {
		e.logg.Warn(ctx, "merge requested without an authenticated session")
		e.metrics.IncMerge(enums.OutcomeDegraded.String())
		return degraded(guest, pkgerrors.New(pkgerrors.CodeUnauthorized, "merge requires an authenticated session"))
	}

	done := e.timed(opMerge)
	merged, err := e.remote.MergeCart(ctx, guest.Items)
	done()
	if err != nil {
		cause := pkgerrors.Wrap(pkgerrors.CodeCartOperation, err, "merge guest cart failed")
		e.warn(ctx, "guest cart merge failed, keeping guest cart for retry", err)
		e.metrics.IncMerge(enums.OutcomeDegraded.String())
		fallback := e.getCartLocked(ctx, authed)
		return degraded(fallback.Cart, cause)
	}

	e.deleteGuest(ctx)
	e.metrics.IncMerge(enums.OutcomeSuccess.String())
	e.emit(ctx, enums.AnalyticsEventCartMerged, authed, guest.Items)
	e.logg.Info(e.logg.WithField(ctx, "merged_lines", len(guest.Items)), "guest cart merged")
	return success(NewCart(merged.Items))
}

// Login moves the engine from guest to authenticated. establish stores the
// credential; the guest cart is merged before the queue is released, so no
// other cart operation can observe the signed-in state first.
func (e *Engine) Login(ctx context.Context, establish func(ctx context.Context) error) Result {
	if establish == nil {
		e.metrics.IncOperation(opLogin, enums.OutcomeFailed.String())
		return failed(e.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "credential step is required"))
	}
	return e.resolve(ctx, opLogin, true, func(ctx context.Context, _ bool) Result {
		guest := e.loadGuest(ctx)

		if err := establish(ctx); err != nil {
			e.warn(ctx, "login failed, guest cart untouched", err)
			return failed(guest, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "login failed"))
		}

		authed := e.auth.IsAuthenticated(ctx)
		ctx = e.logg.WithCartMode(ctx, enums.CartModeAuthenticated.String())
		if authed && !guest.IsEmpty() {
			e.saveNewlyAdded(ctx, guest.ProductIDs())
		}
		return e.mergeLocked(ctx, authed)
	})
}

// SyncFromServer refreshes the snapshot. Guests get the local cart without a
// notification; signed-in users get a full GetCart.
func (e *Engine) SyncFromServer(ctx context.Context) Result {
	if !e.auth.IsAuthenticated(ctx) {
		return e.resolve(ctx, opSync, false, func(ctx context.Context, _ bool) Result {
			return success(e.loadGuest(ctx))
		})
	}
	return e.GetCart(ctx)
}

// CalculateBulkDiscount prices count individual guides.
func (e *Engine) CalculateBulkDiscount(count int) pricing.BulkDiscount {
	return pricing.CalculateBulkDiscount(count)
}

// CreateCheckoutSession asks the remote store for a hosted checkout. Guests
// must provide an email and a non-empty cart; both are checked before any
// network call. Remote failures are returned unchanged.
func (e *Engine) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutSession, error) {
	if err := e.queue.Acquire(ctx, 1); err != nil {
		e.metrics.IncOperation(opCheckout, enums.OutcomeFailed.String())
		return nil, err
	}
	defer e.queue.Release(1)

	ctx, authed := e.scope(ctx, opCheckout)
	if err := validateCheckout(input, !authed); err != nil {
		e.metrics.IncOperation(opCheckout, enums.OutcomeFailed.String())
		return nil, err
	}

	req := CheckoutRequest{SuccessURL: input.SuccessURL, CancelURL: input.CancelURL}
	var items []Item
	if authed {
		e.mu.RLock()
		items = e.current.Clone().Items
		e.mu.RUnlock()
	} else {
		guest := e.loadGuest(ctx)
		if guest.IsEmpty() {
			e.metrics.IncOperation(opCheckout, enums.OutcomeFailed.String())
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		items = guest.Items
		req.Items = guest.Items
		req.Email = input.Email
	}

	done := e.timed(opCheckout)
	session, err := e.remote.CreateCheckoutSession(ctx, req)
	done()
	if err != nil {
		e.metrics.IncOperation(opCheckout, enums.OutcomeFailed.String())
		return nil, err
	}

	e.metrics.IncOperation(opCheckout, enums.OutcomeSuccess.String())
	e.emit(ctx, enums.AnalyticsEventCheckoutStarted, authed, items)
	return session, nil
}

// CompleteCheckout verifies the payment behind a finished checkout. A
// confirmed order clears the guest cart and the carried-over ids; pending or
// failed verifications change nothing.
func (e *Engine) CompleteCheckout(ctx context.Context, input VerifyInput) (*OrderVerification, error) {
	if input.IsZero() {
		e.metrics.IncOperation(opVerify, enums.OutcomeFailed.String())
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_intent or session_id is required")
	}
	var (
		verification *OrderVerification
		err          error
		seq          uint64
	)
	if qerr := e.exclusive(ctx, func() {
		scoped, _ := e.scope(ctx, opVerify)
		done := e.timed(opVerify)
		verification, err = e.remote.VerifyOrder(scoped, input)
		done()
		if err != nil || verification == nil || !verification.Confirmed() {
			return
		}
		e.deleteGuest(scoped)
		e.deleteNewlyAdded(scoped)
		seq = e.setSnapshot(EmptyCart())
	}); qerr != nil {
		e.metrics.IncOperation(opVerify, enums.OutcomeFailed.String())
		return nil, qerr
	}

	switch {
	case err != nil:
		e.metrics.IncOperation(opVerify, enums.OutcomeFailed.String())
		return nil, err
	case seq == 0:
		e.metrics.IncOperation(opVerify, enums.OutcomeDegraded.String())
		return verification, nil
	}

	e.metrics.IncOperation(opVerify, enums.OutcomeSuccess.String())
	e.subs.publish(seq, EmptyCart())
	return verification, nil
}

// Purchases lists owned products. Guests own nothing; remote failures are
// logged and read as an empty list.
func (e *Engine) Purchases(ctx context.Context) []Purchase {
	ctx, authed := e.scope(ctx, opPurchases)
	if !authed {
		return []Purchase{}
	}
	done := e.timed(opPurchases)
	purchases, err := e.remote.Purchases(ctx)
	done()
	if err != nil {
		e.warn(ctx, "failed to load purchases", err)
		e.metrics.IncOperation(opPurchases, enums.OutcomeDegraded.String())
		return []Purchase{}
	}
	e.metrics.IncOperation(opPurchases, enums.OutcomeSuccess.String())
	if purchases == nil {
		purchases = []Purchase{}
	}
	return purchases
}

// HasPurchased reports whether the signed-in user owns productID.
func (e *Engine) HasPurchased(ctx context.Context, productID string) bool {
	ctx, authed := e.scope(ctx, opHasPurchased)
	if !authed || productID == "" {
		return false
	}
	done := e.timed(opHasPurchased)
	owned, err := e.remote.HasPurchased(ctx, productID)
	done()
	if err != nil {
		e.warn(ctx, "failed to check purchase", err)
		e.metrics.IncOperation(opHasPurchased, enums.OutcomeDegraded.String())
		return false
	}
	e.metrics.IncOperation(opHasPurchased, enums.OutcomeSuccess.String())
	return owned
}

// Orders lists the signed-in user's orders.
func (e *Engine) Orders(ctx context.Context) []Order {
	ctx, authed := e.scope(ctx, opOrders)
	if !authed {
		return []Order{}
	}
	done := e.timed(opOrders)
	orders, err := e.remote.Orders(ctx)
	done()
	if err != nil {
		e.warn(ctx, "failed to load orders", err)
		e.metrics.IncOperation(opOrders, enums.OutcomeDegraded.String())
		return []Order{}
	}
	e.metrics.IncOperation(opOrders, enums.OutcomeSuccess.String())
	if orders == nil {
		orders = []Order{}
	}
	return orders
}
