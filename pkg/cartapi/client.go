package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/nursingcollective/cartengine/pkg/errors"
	"github.com/nursingcollective/cartengine/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL = "https://api.thenursingcollective.pro"

	responseBodyLimit int64 = 1 << 20
	idempotencyHeader       = "Idempotency-Key"
)

var errTokenStoreRequired = errors.New("cart api token store is required")

// TokenStore holds the bearer credential. The refresh token itself lives in
// an httpOnly cookie kept by the client's cookie jar.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	ClearAccessToken(ctx context.Context) error
}

// Client talks to the storefront REST API's cart endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenStore
	logg       *logger.Logger
	newKey     func() string
	refreshes  singleflight.Group
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithIdempotencyKeys overrides the merge idempotency key generator.
func WithIdempotencyKeys(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// NewClient builds the REST client. The default transport is instrumented
// with OpenTelemetry and keeps cookies for the refresh endpoint.
func NewClient(tokens TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errTokenStoreRequired
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Jar:       jar,
		},
		baseURL: DefaultBaseURL,
		tokens:  tokens,
		logg:    logger.Nop(),
		newKey:  uuid.NewString,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

type request struct {
	method    string
	path      string
	query     url.Values
	body      any
	headers   map[string]string
	anonymous bool
}

type response struct {
	status int
	body   []byte
}

// do sends req and decodes a 2xx body into out. A 401 on an authenticated
// request triggers one token refresh and one retry; if the refresh fails the
// stored token is cleared and UNAUTHORIZED is returned.
func (c *Client) do(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && !req.anonymous {
		if refreshErr := c.refresh(ctx); refreshErr != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", refreshErr.Error()), "token refresh failed, clearing session")
			if clearErr := c.tokens.ClearAccessToken(ctx); clearErr != nil {
				c.logg.Error(ctx, "failed to clear access token", clearErr)
			}
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, refreshErr, "session expired, please login again")
		}
		resp, err = c.send(ctx, req)
		if err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		return statusError(req, resp)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode response").
			WithDetails(map[string]any{"method": req.method, "path": req.path})
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request) (response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if id := logger.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-Id", id)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}
	if !req.anonymous {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return response{}, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read access token")
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "execute request").
			WithDetails(map[string]any{"method": req.method, "path": req.path})
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, responseBodyLimit))
	if err != nil {
		return response{}, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "read response").
			WithDetails(map[string]any{"method": req.method, "path": req.path})
	}
	return response{status: httpResp.StatusCode, body: raw}, nil
}

func statusError(req request, resp response) error {
	message := fmt.Sprintf("request failed with status %d", resp.status)
	var body errorResponse
	if err := json.Unmarshal(resp.body, &body); err == nil {
		switch {
		case body.Error != "":
			message = body.Error
		case body.Message != "":
			message = body.Message
		}
	}
	code := pkgerrors.CodeNetwork
	if resp.status == http.StatusUnauthorized {
		code = pkgerrors.CodeUnauthorized
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"method": req.method,
		"path":   req.path,
		"status": resp.status,
	})
}

// refresh exchanges the refresh cookie for a new access token. Concurrent
// callers share one in-flight refresh.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		resp, err := c.send(ctx, request{method: http.MethodPost, path: "/auth/refresh", anonymous: true})
		if err != nil {
			return nil, err
		}
		if resp.status < 200 || resp.status >= 300 {
			return nil, statusError(request{method: http.MethodPost, path: "/auth/refresh"}, resp)
		}
		var body refreshResponse
		if err := json.Unmarshal(resp.body, &body); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode refresh response")
		}
		if body.AccessToken == "" {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh returned no access token")
		}
		if err := c.tokens.SetAccessToken(ctx, body.AccessToken); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store refreshed token")
		}
		c.logg.Info(ctx, "access token refreshed")
		return nil, nil
	})
	return err
}

// GetCart fetches the signed-in user's cart.
func (c *Client) GetCart(ctx context.Context) (*Cart, error) {
	var out Cart
	if err := c.do(ctx, request{method: http.MethodGet, path: "/cart"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) mutateCart(ctx context.Context, req request) (*Cart, error) {
	var out cartEnvelope
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	if out.Cart == nil {
		return &Cart{}, nil
	}
	return out.Cart, nil
}

// AddItem adds a line; the server merges it with an existing line.
func (c *Client) AddItem(ctx context.Context, item CartItem) (*Cart, error) {
	return c.mutateCart(ctx, request{
		method: http.MethodPost,
		path:   "/cart/items",
		body: addItemRequest{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductType: item.ProductType,
			Price:       item.Price,
			Quantity:    item.Quantity,
		},
	})
}

func (c *Client) UpdateItem(ctx context.Context, productID string, quantity int) (*Cart, error) {
	return c.mutateCart(ctx, request{
		method: http.MethodPatch,
		path:   "/cart/items/" + url.PathEscape(productID),
		body:   updateItemRequest{Quantity: quantity},
	})
}

func (c *Client) RemoveItem(ctx context.Context, productID string) (*Cart, error) {
	return c.mutateCart(ctx, request{
		method: http.MethodDelete,
		path:   "/cart/items/" + url.PathEscape(productID),
	})
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/cart"}, nil)
}

// MergeCart sends guest lines to the server, which decides how duplicates
// combine. Each call carries a fresh Idempotency-Key.
func (c *Client) MergeCart(ctx context.Context, items []CartItem) (*Cart, error) {
	if items == nil {
		items = []CartItem{}
	}
	return c.mutateCart(ctx, request{
		method:  http.MethodPost,
		path:    "/cart/merge",
		body:    mergeRequest{Items: items},
		headers: map[string]string{idempotencyHeader: c.newKey()},
	})
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	var out CheckoutSession
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/cart/checkout/create-session",
		body:   req,
	}, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNetwork, "checkout session returned no url")
	}
	return &out, nil
}

// VerifyOrder checks a payment after checkout. The endpoint is public and
// answers not-found and pending states with a JSON body, so non-2xx bodies
// are decoded rather than treated as failures.
func (c *Client) VerifyOrder(ctx context.Context, paymentIntent, sessionID string) (*VerifyResponse, error) {
	query := url.Values{}
	if paymentIntent != "" {
		query.Set("payment_intent", paymentIntent)
	}
	if sessionID != "" {
		query.Set("session_id", sessionID)
	}
	req := request{method: http.MethodGet, path: "/cart/orders/verify", query: query, anonymous: true}
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	var out VerifyResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		if resp.status < 200 || resp.status >= 300 {
			return nil, statusError(req, resp)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode verify response")
	}
	return &out, nil
}

func (c *Client) Purchases(ctx context.Context) (*PurchasesResponse, error) {
	var out PurchasesResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/cart/purchases"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) HasPurchased(ctx context.Context, productID string) (bool, error) {
	var out purchaseCheckResponse
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/cart/purchases/check/" + url.PathEscape(productID),
	}, &out); err != nil {
		return false, err
	}
	return out.Purchased, nil
}

func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var out ordersResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/cart/orders"}, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}
