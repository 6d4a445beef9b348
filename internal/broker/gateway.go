package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// symbolCacheTTL bounds how long a fetched symbol enumeration is reused
// before the gateway is asked again.
const symbolCacheTTL = 300 * time.Second

// GatewayClient talks to the local MetaTrader gateway process over HTTP.
// The gateway owns the terminal session; this client owns nothing but the
// base URL and the login credentials.
type GatewayClient struct {
	client  *http.Client
	baseURL string
	creds   Credentials

	mu        sync.Mutex
	loggedIn  bool
	symbols   []string
	symbolsAt time.Time
}

// Credentials identifies the terminal account the gateway should log into.
type Credentials struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
	Path     string `json:"path"`
}

// Ensure GatewayClient implements Broker at compile time.
var _ Broker = (*GatewayClient)(nil)

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string, creds Credentials) *GatewayClient {
	return NewGatewayClientWithHTTP(baseURL, creds, nil)
}

// NewGatewayClientWithHTTP creates a client with a custom HTTP client,
// primarily for tests against httptest servers.
func NewGatewayClientWithHTTP(baseURL string, creds Credentials, client *http.Client) *GatewayClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GatewayClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
	}
}

// Login establishes the terminal session through the gateway.
func (g *GatewayClient) Login() error {
	var resp struct {
		Login int64 `json:"login"`
	}
	if err := g.call(http.MethodPost, "/login", g.creds, &resp); err != nil {
		return fmt.Errorf("gateway login: %w", err)
	}
	g.mu.Lock()
	g.loggedIn = true
	g.mu.Unlock()
	return nil
}

// AccountInfo returns the account snapshot.
func (g *GatewayClient) AccountInfo() (*AccountInfo, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := g.call(http.MethodGet, "/account", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ServerTime returns the terminal clock. The terminal has no clock endpoint
// of its own, so the time rides on the gold tick, with EURUSD as fallback
// for accounts without gold.
func (g *GatewayClient) ServerTime() (time.Time, error) {
	tick, err := g.Tick("XAUUSD")
	if err != nil {
		tick, err = g.Tick("EURUSD")
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("server time: %w", err)
	}
	return tick.Time, nil
}

// Symbols returns the full symbol enumeration, reusing a fetch for up to
// five minutes.
func (g *GatewayClient) Symbols() ([]string, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.symbols != nil && time.Since(g.symbolsAt) < symbolCacheTTL {
		cached := append([]string(nil), g.symbols...)
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := g.call(http.MethodGet, "/symbols", nil, &resp); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.symbols = append([]string(nil), resp.Symbols...)
	g.symbolsAt = time.Now()
	g.mu.Unlock()
	return resp.Symbols, nil
}

// SymbolInfo returns the trading profile for one symbol.
func (g *GatewayClient) SymbolInfo(symbol string) (*SymbolInfo, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var info SymbolInfo
	if err := g.call(http.MethodGet, "/symbol_info?symbol="+url.QueryEscape(symbol), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Tick returns the latest quote for symbol.
func (g *GatewayClient) Tick(symbol string) (*Tick, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var raw struct {
		Bid  float64 `json:"bid"`
		Ask  float64 `json:"ask"`
		Last float64 `json:"last"`
		Time int64   `json:"time"`
	}
	if err := g.call(http.MethodGet, "/tick?symbol="+url.QueryEscape(symbol), nil, &raw); err != nil {
		return nil, err
	}
	return &Tick{Bid: raw.Bid, Ask: raw.Ask, Last: raw.Last, Time: time.Unix(raw.Time, 0)}, nil
}

// Positions returns all open positions.
func (g *GatewayClient) Positions() ([]PositionItem, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var resp struct {
		Positions []PositionItem `json:"positions"`
	}
	if err := g.call(http.MethodGet, "/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// PositionByTicket returns one open position, or a 404 APIError when the
// ticket is no longer open.
func (g *GatewayClient) PositionByTicket(ticket int64) (*PositionItem, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var item PositionItem
	if err := g.call(http.MethodGet, "/positions/"+strconv.FormatInt(ticket, 10), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// PendingOrders returns all pending orders.
func (g *GatewayClient) PendingOrders() ([]OrderItem, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var resp struct {
		Orders []OrderItem `json:"orders"`
	}
	if err := g.call(http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// OrderByTicket returns one pending order.
func (g *GatewayClient) OrderByTicket(ticket int64) (*OrderItem, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var item OrderItem
	if err := g.call(http.MethodGet, "/orders/"+strconv.FormatInt(ticket, 10), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// OrderSend submits a trade request. A response whose retcode is neither
// done nor placed is surfaced as an APIError carrying that retcode.
func (g *GatewayClient) OrderSend(req *OrderRequest) (*OrderResult, error) {
	if err := g.requireLogin(); err != nil {
		return nil, err
	}
	var result OrderResult
	if err := g.call(http.MethodPost, "/order_send", req, &result); err != nil {
		return nil, err
	}
	if result.Retcode != RetcodeDone && result.Retcode != RetcodePlaced {
		return &result, &APIError{Code: result.Retcode, Msg: result.Comment}
	}
	return &result, nil
}

func (g *GatewayClient) requireLogin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

// call performs one gateway round trip, decoding the JSON response into out
// when out is non-nil. Non-2xx statuses become APIErrors carrying the HTTP
// status and response body.
func (g *GatewayClient) call(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Code: resp.StatusCode, Msg: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
