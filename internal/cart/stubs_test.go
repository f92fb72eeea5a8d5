package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nursingcollective/cartengine/pkg/enums"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/storage"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubAuth struct {
	authed atomic.Bool
}

func (s *stubAuth) IsAuthenticated(context.Context) bool { return s.authed.Load() }

// stubRemote behaves like the REST API: adds and merges sum quantities.
type stubRemote struct {
	mu    sync.Mutex
	items []Item
	calls []string

	getErr      error
	addErr      error
	updateErr   error
	removeErr   error
	clearErr    error
	mergeErr    error
	checkoutErr error
	purchaseErr error

	merged       [][]Item
	checkoutReqs []CheckoutRequest
	verification *OrderVerification
	verifyErr    error
	purchases    []Purchase
	orders       []Order
}

func (s *stubRemote) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *stubRemote) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *stubRemote) snapshot() Cart {
	return NewCart(s.items)
}

func (s *stubRemote) upsert(item Item) {
	for i := range s.items {
		if s.items[i].ProductID == item.ProductID {
			s.items[i].Quantity += item.Quantity
			return
		}
	}
	s.items = append(s.items, item)
}

func (s *stubRemote) GetCart(context.Context) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetCart")
	if s.getErr != nil {
		return Cart{}, s.getErr
	}
	return s.snapshot(), nil
}

func (s *stubRemote) AddItem(_ context.Context, item Item) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("AddItem")
	if s.addErr != nil {
		return Cart{}, s.addErr
	}
	s.upsert(item)
	return s.snapshot(), nil
}

func (s *stubRemote) UpdateItem(_ context.Context, productID string, quantity int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateItem")
	if s.updateErr != nil {
		return Cart{}, s.updateErr
	}
	for i := range s.items {
		if s.items[i].ProductID == productID {
			s.items[i].Quantity = quantity
		}
	}
	return s.snapshot(), nil
}

func (s *stubRemote) RemoveItem(_ context.Context, productID string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("RemoveItem")
	if s.removeErr != nil {
		return Cart{}, s.removeErr
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return s.snapshot(), nil
}

func (s *stubRemote) ClearCart(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("ClearCart")
	if s.clearErr != nil {
		return s.clearErr
	}
	s.items = nil
	return nil
}

func (s *stubRemote) MergeCart(_ context.Context, items []Item) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("MergeCart")
	if s.mergeErr != nil {
		return Cart{}, s.mergeErr
	}
	s.merged = append(s.merged, NewCart(items).Items)
	for _, item := range items {
		s.upsert(item)
	}
	return s.snapshot(), nil
}

func (s *stubRemote) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateCheckoutSession")
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	s.checkoutReqs = append(s.checkoutReqs, req)
	return &CheckoutSession{URL: "https://checkout.test/session/1", SessionID: "cs_1"}, nil
}

func (s *stubRemote) VerifyOrder(context.Context, VerifyInput) (*OrderVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("VerifyOrder")
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verification, nil
}

func (s *stubRemote) Purchases(context.Context) ([]Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Purchases")
	if s.purchaseErr != nil {
		return nil, s.purchaseErr
	}
	return s.purchases, nil
}

func (s *stubRemote) HasPurchased(_ context.Context, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("HasPurchased")
	if s.purchaseErr != nil {
		return false, s.purchaseErr
	}
	for _, p := range s.purchases {
		if p.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRemote) Orders(context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Orders")
	if s.purchaseErr != nil {
		return nil, s.purchaseErr
	}
	return s.orders, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) Types() []enums.AnalyticsEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.AnalyticsEventType, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

// failingStore returns err from every call.
type failingStore struct {
	err error
}

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte) error   { return f.err }
func (f failingStore) Delete(context.Context, string) error        { return f.err }
func (f failingStore) Ping(context.Context) error                  { return f.err }

type harness struct {
	engine *Engine
	remote *stubRemote
	local  *storage.Memory
	auth   *stubAuth
	sink   *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		remote: &stubRemote{},
		local:  storage.NewMemory(),
		auth:   &stubAuth{},
		sink:   &recordingSink{},
	}
	engine, err := New(Params{
		Remote: h.remote,
		Local:  h.local,
		Auth:   h.auth,
		Events: h.sink,
		Clock:  func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.engine = engine
	return h
}

func guide(id string) AddItemInput {
	return AddItemInput{
		ProductID:   id,
		ProductName: "Guide " + id,
		ProductType: enums.ProductTypeIndividual,
		Price:       decimal.RequireFromString("5.99"),
		Quantity:    1,
	}
}

func networkErr() error {
	return pkgerrors.New(pkgerrors.CodeNetwork, "request failed with status 503")
}

// panickingSink fails the first Record call.
type panickingSink struct {
	fired atomic.Bool
}

func (p *panickingSink) Record(context.Context, Event) {
	if p.fired.CompareAndSwap(false, true) {
		panic("sink unavailable")
	}
}

func mustAdd(t *testing.T, e *Engine, input AddItemInput) Cart {
	t.Helper()
	cart, err := e.AddItem(context.Background(), input)
	if err != nil {
		t.Fatalf("add %s: %v", input.ProductID, err)
	}
	return cart
}
