package bitstamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/infra"
	"crypto_arb/pkg/quant"
)

// Constants for Bitstamp API URLs
const (
	MainnetURL = "https://www.bitstamp.net"

	pathBuy       = "/api/buy/"
	pathSell      = "/api/sell/"
	pathOrderBook = "/api/order_book/"

	priceDecimals  = 2
	amountDecimals = 8
)

var ErrOrderRejected = errors.New("bitstamp: order rejected")

// Client handles Bitstamp REST API communication: hedge orders and book snapshots.
type Client struct {
	baseURL    string
	signer     *Signer
	httpClient *http.Client
}

// NewClient creates a REST client. signer may be nil for public endpoints only.
func NewClient(baseURL string, signer *Signer, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = MainnetURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Close wipes the API keys.
func (c *Client) Close() error {
	c.signer.Wipe()
	return nil
}

// SubmitOrder places a limit order: Bid buys, Ask sells.
func (c *Client) SubmitOrder(ctx context.Context, side domain.Side, price quant.PriceSats, qty quant.QtySats) error {
	if c.signer == nil {
		return errors.New("bitstamp: no credentials configured")
	}
	path := pathBuy
	if side == domain.Ask {
		path = pathSell
	}

	key, sig, nonce := c.signer.AuthParams()
	form := url.Values{
		"key":       {key},
		"signature": {sig},
		"nonce":     {nonce},
		"amount":    {FormatAmount(qty)},
		"price":     {FormatPrice(price)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", infra.GetPlatformUserAgent())

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var resp struct {
		ID     json.Number     `json:"id"`
		Status string          `json:"status"`
		Reason json.RawMessage `json:"reason"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode order response: %w", err)
	}
	if resp.Status == "error" || len(resp.Error) > 0 || resp.ID == "" {
		reason := string(resp.Reason)
		if reason == "" {
			reason = string(resp.Error)
		}
		return fmt.Errorf("%w: %s", ErrOrderRejected, reason)
	}
	slog.Info("BITSTAMP_ORDER_PLACED", "id", resp.ID.String(), "side", side, "price", price, "qty", qty)
	return nil
}

// OrderBook fetches the public order book snapshot.
func (c *Client) OrderBook(ctx context.Context) (domain.RawBook, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathOrderBook, nil)
	if err != nil {
		return domain.RawBook{}, err
	}
	req.Header.Set("User-Agent", infra.GetPlatformUserAgent())

	body, err := c.do(req)
	if err != nil {
		return domain.RawBook{}, err
	}
	var book domain.RawBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.RawBook{}, fmt.Errorf("decode order book: %w", err)
	}
	return book, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if dialFailed(err) {
			return nil, fmt.Errorf("%w: %w", infra.ErrRequestNotSent, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: bitstamp %s %s: rate limited", infra.ErrRequestNotSent, req.Method, req.URL.Path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bitstamp %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// FormatPrice renders a 1e8 price with the venue's two decimals, truncated.
func FormatPrice(p quant.PriceSats) string {
	return decimal.New(int64(p), -quant.Decimals).Truncate(priceDecimals).StringFixed(priceDecimals)
}

// FormatAmount renders a 1e8 quantity with eight decimals.
func FormatAmount(q quant.QtySats) string {
	return decimal.New(int64(q), -quant.Decimals).StringFixed(amountDecimals)
}

// dialFailed reports whether the connection was never established. Any later
// failure (timeouts included) leaves the order's fate unknown.
func dialFailed(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
