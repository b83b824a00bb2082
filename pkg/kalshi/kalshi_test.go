package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, key
}

func testSigner(t *testing.T) (*Signer, *rsa.PublicKey) {
	t.Helper()

	path, key := writeTestKey(t)
	signer, err := NewSigner("key-id-1", path)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return signer, &key.PublicKey
}

func verifyHeaders(t *testing.T, pub *rsa.PublicKey, r *http.Request) {
	t.Helper()

	if r.Header.Get("KALSHI-ACCESS-KEY") != "key-id-1" {
		t.Errorf("Wrong access key header: %s", r.Header.Get("KALSHI-ACCESS-KEY"))
	}
	ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
	if ts == "" {
		t.Error("Missing timestamp header")
	}
	sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
	if err != nil {
		t.Errorf("Signature is not base64: %v", err)
		return
	}
	hashed := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
	err = rsa.VerifyPSS(pub, crypto.SHA256, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		t.Errorf("Signature does not verify: %v", err)
	}
}

func TestSignerHeaders(t *testing.T) {
	signer, pub := testSigner(t)

	now := time.UnixMilli(1700000000000)
	headers, err := signer.Headers(http.MethodGet, "/trade-api/v2/portfolio/balance", now)
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}

	if headers["KALSHI-ACCESS-KEY"] != "key-id-1" {
		t.Errorf("Wrong key header: %s", headers["KALSHI-ACCESS-KEY"])
	}
	if headers["KALSHI-ACCESS-TIMESTAMP"] != "1700000000000" {
		t.Errorf("Wrong timestamp header: %s", headers["KALSHI-ACCESS-TIMESTAMP"])
	}

	sig, err := base64.StdEncoding.DecodeString(headers["KALSHI-ACCESS-SIGNATURE"])
	if err != nil {
		t.Fatalf("Signature is not base64: %v", err)
	}
	msg := "1700000000000" + "GET" + "/trade-api/v2/portfolio/balance"
	hashed := sha256.Sum256([]byte(msg))
	err = rsa.VerifyPSS(pub, crypto.SHA256, hashed[:], sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	if err != nil {
		t.Errorf("Signature does not verify: %v", err)
	}
}

func TestNewSignerPKCS1Key(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.pem")
	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	signer, err := NewSigner("key-id-1", path)
	if err != nil {
		t.Fatalf("NewSigner failed for PKCS#1 key: %v", err)
	}
	if signer.KeyID() != "key-id-1" {
		t.Errorf("Wrong key id: %s", signer.KeyID())
	}
}

func TestNewSignerErrors(t *testing.T) {
	path, _ := writeTestKey(t)

	if _, err := NewSigner("", path); err == nil {
		t.Error("Expected error for empty key id")
	}
	if _, err := NewSigner("key-id-1", filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("Expected error for missing key file")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a pem"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := NewSigner("key-id-1", garbage); err == nil {
		t.Error("Expected error for non-PEM file")
	}
}

func TestGetBalance(t *testing.T) {
	signer, pub := testSigner(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trade-api/v2/portfolio/balance" {
			t.Errorf("Wrong path: %s", r.URL.Path)
		}
		verifyHeaders(t, pub, r)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"balance": 102345})
	}))
	defer server.Close()

	client := NewClient(signer, WithBaseURL(server.URL+"/trade-api/v2"))

	balance, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 102345 {
		t.Errorf("Wrong balance: %d", balance)
	}
}

func TestGetPositions(t *testing.T) {
	signer, pub := testSigner(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifyHeaders(t, pub, r)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"market_positions": []Position{
				{Ticker: "KXNCAAMBGAME-26MAR14DUKEUNC-DUKE", Position: 3, MarketExposure: 180},
			},
		})
	}))
	defer server.Close()

	client := NewClient(signer, WithBaseURL(server.URL))

	positions, err := client.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(positions))
	}
	if positions[0].Position != 3 {
		t.Errorf("Wrong position count: %d", positions[0].Position)
	}
}

func TestGetFills(t *testing.T) {
	signer, _ := testSigner(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("Wrong limit param: %s", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"fills": []Fill{
				{TradeID: "t1", OrderID: "o1", Ticker: "TKR", Side: "yes", Count: 2, YesPrice: 42},
			},
		})
	}))
	defer server.Close()

	client := NewClient(signer, WithBaseURL(server.URL))

	fills, err := client.GetFills(context.Background(), 50)
	if err != nil {
		t.Fatalf("GetFills failed: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got %d", len(fills))
	}
	if fills[0].YesPrice != 42 {
		t.Errorf("Wrong fill price: %d", fills[0].YesPrice)
	}
}

func TestCreateOrder(t *testing.T) {
	signer, _ := testSigner(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/portfolio/orders" {
			t.Errorf("Wrong path: %s", r.URL.Path)
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode order: %v", err)
		}
		if req.ClientOrderID == "" {
			t.Error("Client order id should be filled in")
		}
		if req.Type != "limit" {
			t.Errorf("Wrong order type: %s", req.Type)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"order": Order{
				OrderID:       "ord-1",
				ClientOrderID: req.ClientOrderID,
				Ticker:        req.Ticker,
				Status:        "resting",
			},
		})
	}))
	defer server.Close()

	client := NewClient(signer, WithBaseURL(server.URL))

	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Ticker:   "KXNCAAMBGAME-26MAR14DUKEUNC-DUKE",
		Side:     "yes",
		Action:   "buy",
		Count:    2,
		YesPrice: 45,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.OrderID != "ord-1" {
		t.Errorf("Wrong order id: %s", order.OrderID)
	}
	if order.Status != "resting" {
		t.Errorf("Wrong status: %s", order.Status)
	}
}

func TestCancelOrder(t *testing.T) {
	signer, _ := testSigner(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/portfolio/orders/ord-1" {
			t.Errorf("Wrong path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(signer, WithBaseURL(server.URL))

	if err := client.CancelOrder(context.Background(), "ord-1"); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
}

func TestGetMarketsPagination(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		if q.Get("series_ticker") != "KXNCAAMBGAME" {
			t.Errorf("Wrong series_ticker: %s", q.Get("series_ticker"))
		}
		if q.Get("status") != "open" {
			t.Errorf("Wrong status: %s", q.Get("status"))
		}

		w.Header().Set("Content-Type", "application/json")
		switch calls {
		case 1:
			if q.Get("cursor") != "" {
				t.Errorf("First page should have no cursor, got %s", q.Get("cursor"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"markets": []Market{{Ticker: "M1"}, {Ticker: "M2"}},
				"cursor":  "next-page",
			})
		case 2:
			if q.Get("cursor") != "next-page" {
				t.Errorf("Wrong cursor: %s", q.Get("cursor"))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"markets": []Market{{Ticker: "M3"}},
				"cursor":  "",
			})
		default:
			t.Errorf("Unexpected page request %d", calls)
			json.NewEncoder(w).Encode(map[string]any{"markets": []Market{}})
		}
	}))
	defer server.Close()

	client := NewPublicClient(WithBaseURL(server.URL))

	markets, err := client.GetMarkets(context.Background(), "KXNCAAMBGAME", "open")
	if err != nil {
		t.Fatalf("GetMarkets failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 page fetches, got %d", calls)
	}
	if len(markets) != 3 {
		t.Fatalf("Expected 3 markets, got %d", len(markets))
	}
	if markets[2].Ticker != "M3" {
		t.Errorf("Wrong last market: %s", markets[2].Ticker)
	}
}

func TestGetOrderbook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/TKR/orderbook" {
			t.Errorf("Wrong path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orderbook":{"yes":[[40,100],[42,50]],"no":[[55,10],[57,30]]}}`))
	}))
	defer server.Close()

	client := NewPublicClient(WithBaseURL(server.URL))

	book, err := client.GetOrderbook(context.Background(), "TKR")
	if err != nil {
		t.Fatalf("GetOrderbook failed: %v", err)
	}
	if book.BestYesBid() != 42 {
		t.Errorf("Wrong best yes bid: %d", book.BestYesBid())
	}
	// Best no bid 57 means yes is offered at 43.
	if book.BestYesAsk() != 43 {
		t.Errorf("Wrong best yes ask: %d", book.BestYesAsk())
	}
}

func TestOrderbookEmpty(t *testing.T) {
	var book Orderbook
	if book.BestYesBid() != 0 {
		t.Errorf("Empty book bid should be 0, got %d", book.BestYesBid())
	}
	if book.BestYesAsk() != 0 {
		t.Errorf("Empty book ask should be 0, got %d", book.BestYesAsk())
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   Kind
	}{
		{"unauthorized", 401, KindAuth},
		{"forbidden", 403, KindAuth},
		{"rate limited", 429, KindTransient},
		{"server error", 500, KindTransient},
		{"bad gateway", 502, KindTransient},
		{"not found", 404, KindRequest},
		{"bad request", 400, KindRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"error":{"code":"test"}}`))
			}))
			defer server.Close()

			client := NewPublicClient(WithBaseURL(server.URL))

			_, err := client.GetMarket(context.Background(), "TKR")
			if err == nil {
				t.Fatalf("Expected error for status %d", tc.status)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got %T", err)
			}
			if apiErr.Kind != tc.kind {
				t.Errorf("Wrong kind for status %d: got %s, want %s", tc.status, apiErr.Kind, tc.kind)
			}
			if apiErr.Status != tc.status {
				t.Errorf("Wrong status: %d", apiErr.Status)
			}
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewPublicClient(WithBaseURL(server.URL))

	_, err := client.GetMarket(context.Background(), "TKR")
	if err == nil {
		t.Fatal("Expected error for malformed body")
	}
	if !IsMalformed(err) {
		t.Errorf("Expected malformed kind, got %v", err)
	}
}

func TestConnectionErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewPublicClient(WithBaseURL(server.URL))

	_, err := client.GetMarket(context.Background(), "TKR")
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	if !IsTransient(err) {
		t.Errorf("Expected transient kind, got %v", err)
	}
}

func TestPublicClientPortfolio(t *testing.T) {
	client := NewPublicClient()

	if client.Authenticated() {
		t.Error("Public client should not report authenticated")
	}

	_, err := client.GetBalance(context.Background())
	if err == nil {
		t.Fatal("Expected error without credentials")
	}
	if !IsAuth(err) {
		t.Errorf("Expected auth kind, got %v", err)
	}
}

func TestQuoteMid(t *testing.T) {
	cases := []struct {
		name string
		q    Quote
		want int
	}{
		{"two sided", Quote{YesBid: 44, YesAsk: 48}, 46},
		{"last trade fallback", Quote{LastPrice: 37}, 37},
		{"ask only", Quote{YesAsk: 60}, 60},
		{"bid only", Quote{YesBid: 40}, 40},
		{"empty", Quote{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.Mid(); got != tc.want {
				t.Errorf("Mid() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestQuoteCrossed(t *testing.T) {
	if (Quote{YesBid: 44, YesAsk: 48}).Crossed() {
		t.Error("Normal book should not be crossed")
	}
	if !(Quote{YesBid: 50, YesAsk: 48}).Crossed() {
		t.Error("Bid above ask should be crossed")
	}
	if !(Quote{YesAsk: 48}).Crossed() {
		t.Error("One-sided book should count as unusable")
	}
}

func TestQuoteFromMarket(t *testing.T) {
	ts := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	m := Market{Ticker: "TKR", YesBid: 44, YesAsk: 48, LastPrice: 46, Volume: 1200}

	q := QuoteFromMarket(m, ts)
	if q.Ticker != "TKR" || q.YesBid != 44 || q.YesAsk != 48 {
		t.Errorf("Wrong quote: %+v", q)
	}
	if !q.Timestamp.Equal(ts) {
		t.Errorf("Wrong timestamp: %v", q.Timestamp)
	}
}

func TestFeeCents(t *testing.T) {
	// At the published rate the variance term stays under half a cent,
	// so the one-cent minimum applies at every price.
	for _, price := range []int{1, 25, 50, 75, 99} {
		if got := FeeCents(price); got != 1 {
			t.Errorf("FeeCents(%d) = %d, want 1", price, got)
		}
	}

	if got := FeeCentsAtRate(0.07, 50); got != 2 {
		t.Errorf("FeeCentsAtRate(0.07, 50) = %d, want 2", got)
	}
	if got := FeeCentsAtRate(0.07, 25); got != 1 {
		t.Errorf("FeeCentsAtRate(0.07, 25) = %d, want 1", got)
	}

	if got := RoundTripFeeCents(50, 3); got != 6 {
		t.Errorf("RoundTripFeeCents(50, 3) = %d, want 6", got)
	}
}
