// Package kalshi is a minimal client for the venue's trade API: markets,
// orderbooks, balance, orders and fills, authenticated with RSA-PSS
// request signatures. Failures come back classified (transient, auth,
// malformed) so callers can pick a policy instead of parsing messages.
package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production trade API.
const DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

// Client is a venue API client. A nil signer limits it to public market
// data; portfolio calls then fail with an auth-kind error.
type Client struct {
	baseURL    string
	basePath   string
	signer     *Signer
	httpClient *http.Client
	limiter    *rate.Limiter
	nowFn      func() time.Time
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithRateLimit overrides the request pacing.
func WithRateLimit(perSec float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// NewClient creates an authenticated client.
func NewClient(signer *Signer, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		signer:  signer,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.basePath = u.Path
	}
	return c
}

// NewPublicClient creates a client for unauthenticated market data only.
func NewPublicClient(opts ...ClientOption) *Client {
	return NewClient(nil, opts...)
}

// Authenticated reports whether portfolio calls are possible.
func (c *Client) Authenticated() bool {
	return c.signer != nil
}

// --- Portfolio ---

// GetBalance returns the account balance in cents.
func (c *Client) GetBalance(ctx context.Context) (int, error) {
	var resp struct {
		Balance int `json:"balance"`
	}
	if err := c.get(ctx, "/portfolio/balance", nil, true, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// GetPositions returns the venue's view of our market positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var resp struct {
		MarketPositions []Position `json:"market_positions"`
	}
	if err := c.get(ctx, "/portfolio/positions", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.MarketPositions, nil
}

// GetFills returns recent fills, newest first.
func (c *Client) GetFills(ctx context.Context, limit int) ([]Fill, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Fills []Fill `json:"fills"`
	}
	if err := c.get(ctx, "/portfolio/fills", params, true, &resp); err != nil {
		return nil, err
	}
	return resp.Fills, nil
}

// CreateOrder places a limit order. A missing client order id is filled
// in with a fresh uuid so retries stay idempotent venue-side.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	if req.Type == "" {
		req.Type = "limit"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &APIError{Op: "create order", Kind: KindMalformed, Err: err}
	}

	var resp struct {
		Order Order `json:"order"`
	}
	if err := c.post(ctx, "/portfolio/orders", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// CancelOrder cancels a resting order by venue order id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.delete(ctx, "/portfolio/orders/"+orderID, nil)
}

// --- Market data (public) ---

// GetMarkets lists markets for a series, following cursors until the
// venue runs out of pages.
func (c *Client) GetMarkets(ctx context.Context, seriesTicker, status string) ([]Market, error) {
	var out []Market
	cursor := ""
	for page := 0; page < 10; page++ {
		params := url.Values{}
		params.Set("limit", "200")
		if seriesTicker != "" {
			params.Set("series_ticker", seriesTicker)
		}
		if status != "" {
			params.Set("status", status)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp struct {
			Markets []Market `json:"markets"`
			Cursor  string   `json:"cursor"`
		}
		if err := c.get(ctx, "/markets", params, false, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Markets...)
		if resp.Cursor == "" || len(resp.Markets) == 0 {
			break
		}
		cursor = resp.Cursor
	}
	return out, nil
}

// GetMarket fetches one market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	var resp struct {
		Market Market `json:"market"`
	}
	if err := c.get(ctx, "/markets/"+ticker, nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp.Market, nil
}

// GetOrderbook fetches the depth for one market.
func (c *Client) GetOrderbook(ctx context.Context, ticker string) (*Orderbook, error) {
	var resp struct {
		Orderbook Orderbook `json:"orderbook"`
	}
	if err := c.get(ctx, "/markets/"+ticker+"/orderbook", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp.Orderbook, nil
}

// --- Internal helpers ---

func (c *Client) get(ctx context.Context, path string, params url.Values, auth bool, result any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Op: "GET " + path, Kind: KindUnknown, Err: err}
	}
	return c.do(req, path, auth, result)
}

func (c *Client) post(ctx context.Context, path string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &APIError{Op: "POST " + path, Kind: KindUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, true, result)
}

func (c *Client) delete(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return &APIError{Op: "DELETE " + path, Kind: KindUnknown, Err: err}
	}
	return c.do(req, path, true, result)
}

func (c *Client) do(req *http.Request, path string, auth bool, result any) error {
	op := req.Method + " " + path

	if err := c.limiter.Wait(req.Context()); err != nil {
		return &APIError{Op: op, Kind: KindTransient, Err: err}
	}

	req.Header.Set("Accept", "application/json")
	if auth {
		if c.signer == nil {
			return &APIError{Op: op, Kind: KindAuth, Err: fmt.Errorf("no credentials configured")}
		}
		// The signature covers the path without the query string.
		headers, err := c.signer.Headers(req.Method, c.basePath+path, c.nowFn())
		if err != nil {
			return &APIError{Op: op, Kind: KindAuth, Err: err}
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Op:     op,
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &APIError{Op: op, Kind: KindMalformed, Err: err}
		}
	}
	return nil
}
