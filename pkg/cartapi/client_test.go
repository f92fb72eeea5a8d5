package cartapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTokens struct {
	mu      sync.Mutex
	token   string
	cleared bool
}

func (m *memoryTokens) AccessToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memoryTokens) SetAccessToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memoryTokens) ClearAccessToken(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.cleared = true
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, server *httptest.Server, tokens TokenStore, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(server.URL), WithHTTPClient(server.Client())}, opts...)
	client, err := NewClient(tokens, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresTokenStore(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
}

func TestGetCartSendsBearerAndDecodesNumbers(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer tok-1", req.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"items":[{"product_id":"cardiac","product_name":"Cardiac Guide","product_type":"individual","price":5.99,"quantity":2}],"subtotal":11.98,"item_count":2}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "tok-1"})
	cart, err := client.GetCart(context.Background())
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.True(t, decimal.RequireFromString("5.99").Equal(cart.Items[0].Price.Decimal))
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.ItemCount)
}

func TestRequestsForwardRequestID(t *testing.T) {
	seen := make(chan string, 2)
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		seen <- req.Header.Get("X-Request-Id")
		_, _ = io.WriteString(w, `{"items":[]}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "tok-1"})
	ctx := logger.Nop().WithRequestID(context.Background(), "req-42")
	if _, err := client.GetCart(ctx); err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if got := <-seen; got != "req-42" {
		t.Fatalf("expected forwarded request id, got %q", got)
	}

	if _, err := client.GetCart(context.Background()); err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if got := <-seen; got != "" {
		t.Fatalf("expected no request id without one on the context, got %q", got)
	}
}

func TestAddItemSendsPriceAsNumber(t *testing.T) {
	var captured map[string]any
	r := chi.NewRouter()
	r.Post("/cart/items", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&captured))
		_, _ = io.WriteString(w, `{"cart":{"items":[{"product_id":"p1","price":"5.99","quantity":1}]}}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "tok"})
	cart, err := client.AddItem(context.Background(), CartItem{
		ProductID:   "p1",
		ProductName: "Guide",
		ProductType: "individual",
		Price:       NewAmount(decimal.RequireFromString("5.99")),
		Quantity:    1,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	price, ok := captured["price"].(float64)
	require.True(t, ok, "price must be a JSON number, got %T", captured["price"])
	assert.Equal(t, 5.99, price)
	assert.Equal(t, "p1", captured["product_id"])
	assert.EqualValues(t, 1, captured["quantity"])
}

func TestUpdateAndRemoveEscapeProductID(t *testing.T) {
	var paths []string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		paths = append(paths, req.Method+" "+req.URL.EscapedPath())
		return jsonResponse(http.StatusOK, `{"cart":{"items":[]}}`), nil
	})
	client, err := NewClient(&memoryTokens{token: "t"}, WithBaseURL("http://api.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	_, err = client.UpdateItem(context.Background(), "a/b", 3)
	require.NoError(t, err)
	_, err = client.RemoveItem(context.Background(), "a/b")
	require.NoError(t, err)

	assert.Equal(t, []string{"PATCH /cart/items/a%2Fb", "DELETE /cart/items/a%2Fb"}, paths)
}

func TestMergeCartSendsIdempotencyKey(t *testing.T) {
	var key string
	var body mergeRequest
	r := chi.NewRouter()
	r.Post("/cart/merge", func(w http.ResponseWriter, req *http.Request) {
		key = req.Header.Get(idempotencyHeader)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"cart":{"items":[{"product_id":"p1","price":5.99,"quantity":3}]}}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "t"}, WithIdempotencyKeys(func() string { return "merge-1" }))
	cart, err := client.MergeCart(context.Background(), []CartItem{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "merge-1", key)
	require.Len(t, body.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestRefreshOnUnauthorizedRetriesOnce(t *testing.T) {
	var cartCalls, refreshCalls int
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		cartCalls++
		if req.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"token expired"}`)
			return
		}
		_, _ = io.WriteString(w, `{"items":[],"subtotal":0,"item_count":0}`)
	})
	r.Post("/auth/refresh", func(w http.ResponseWriter, req *http.Request) {
		refreshCalls++
		assert.Empty(t, req.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"access_token":"fresh"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	tokens := &memoryTokens{token: "stale"}
	client := newTestClient(t, server, tokens)
	_, err := client.GetCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cartCalls)
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, "fresh", tokens.token)
}

func TestRefreshFailureClearsSession(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	r.Post("/auth/refresh", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"refresh token revoked"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	tokens := &memoryTokens{token: "stale"}
	client := newTestClient(t, server, tokens)
	_, err := client.GetCart(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "session expired")
	assert.True(t, tokens.cleared)
	assert.Empty(t, tokens.token)
}

func TestServerErrorBecomesNetworkError(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/cart", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"database unavailable"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "t"})
	err := client.ClearCart(context.Background())
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNetwork, typed.Code())
	assert.Equal(t, "database unavailable", typed.Message())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, details["status"])
}

func TestTransportFailureBecomesNetworkError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})
	client, err := NewClient(&memoryTokens{}, WithBaseURL("http://api.test"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	_, err = client.Orders(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNetwork))
}

func TestCheckoutSessionOmitsEmptyFields(t *testing.T) {
	var raw map[string]any
	r := chi.NewRouter()
	r.Post("/cart/checkout/create-session", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&raw))
		_, _ = io.WriteString(w, `{"url":"https://checkout.example/s/1","session_id":"cs_1"}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "t"})
	session, err := client.CreateCheckoutSession(context.Background(), CheckoutRequest{SuccessURL: "https://site/success"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/s/1", session.URL)
	assert.Equal(t, "cs_1", session.SessionID)
	assert.NotContains(t, raw, "items")
	assert.NotContains(t, raw, "email")
	assert.Equal(t, "https://site/success", raw["success_url"])
}

func TestVerifyOrderDecodesPendingAndNotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/cart/orders/verify", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		switch req.URL.Query().Get("payment_intent") {
		case "pi_ok":
			_, _ = io.WriteString(w, `{"success":true,"order":{"order_number":"NC-1001","items":[{"product_name":"Cardiac Guide","price":5.99}],"subtotal":5.99,"discount_amount":0,"total":5.99,"customer_email":"a@b.co"}}`)
		case "pi_pending":
			_, _ = io.WriteString(w, `{"success":false,"status":"pending"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success":false,"message":"order not found"}`)
		}
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "t"})

	ok, err := client.VerifyOrder(context.Background(), "pi_ok", "")
	require.NoError(t, err)
	require.True(t, ok.Success)
	assert.Equal(t, "NC-1001", ok.Order.OrderNumber)

	pending, err := client.VerifyOrder(context.Background(), "pi_pending", "")
	require.NoError(t, err)
	assert.Equal(t, "pending", pending.Status)

	missing, err := client.VerifyOrder(context.Background(), "pi_missing", "cs_9")
	require.NoError(t, err)
	assert.False(t, missing.Success)
	assert.Equal(t, "order not found", missing.Message)
}

func TestPurchasesAndOrders(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/cart/purchases", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"purchases":[{"product_id":"cardiac","product_name":"Cardiac Guide"}],"product_ids":["cardiac"]}`)
	})
	r.Get("/cart/purchases/check/{id}", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"purchased": chi.URLParam(req, "id") == "cardiac"})
	})
	r.Get("/cart/orders", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"orders":[{"order_number":"NC-1","items":[],"subtotal":0,"discount_amount":0,"total":0}]}`)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	client := newTestClient(t, server, &memoryTokens{token: "t"})
	ctx := context.Background()

	purchases, err := client.Purchases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cardiac"}, purchases.ProductIDs)

	owned, err := client.HasPurchased(ctx, "cardiac")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = client.HasPurchased(ctx, "renal")
	require.NoError(t, err)
	assert.False(t, owned)

	orders, err := client.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "NC-1", orders[0].OrderNumber)
}
