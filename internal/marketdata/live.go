package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Staysteady/bpipe/internal/httputil"
	"github.com/Staysteady/bpipe/internal/models"
)

// LiveTerminal fetches quotes from a terminal gateway over HTTP.
type LiveTerminal struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig

	mu        sync.Mutex
	connected bool
}

func NewLiveTerminal(baseURL string) *LiveTerminal {
	return &LiveTerminal{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

// Connect probes the gateway health endpoint once.
func (t *LiveTerminal) Connect(ctx context.Context) error {
	resp, err := httputil.Do(ctx, t.httpClient, t.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	})
	if err != nil {
		return fmt.Errorf("terminal health check: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("terminal health check returned status %d", resp.StatusCode)
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	fmt.Printf("[TERMINAL] Connected to %s\n", t.baseURL)
	return nil
}

func (t *LiveTerminal) Disconnect() {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	fmt.Println("[TERMINAL] Disconnected")
}

type quoteJSON struct {
	Ticker        string   `json:"ticker"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
	Bid           *float64 `json:"bid"`
	Ask           *float64 `json:"ask"`
	Volume        *float64 `json:"volume"`
	Open          *float64 `json:"open"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	PreviousClose *float64 `json:"previousClose"`
}

func (t *LiveTerminal) Quotes(ctx context.Context, metals map[string]string) ([]models.MetalPrice, error) {
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	tickers := make([]string, 0, len(metals))
	byTicker := make(map[string]string, len(metals))
	for name, ticker := range metals {
		tickers = append(tickers, ticker)
		byTicker[ticker] = name
	}

	endpoint := t.baseURL + "/v1/quotes?tickers=" + url.QueryEscape(strings.Join(tickers, ","))
	resp, err := httputil.Do(ctx, t.httpClient, t.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("terminal returned status %d", resp.StatusCode)
	}

	var payload []quoteJSON
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}

	now := time.Now()
	out := make([]models.MetalPrice, 0, len(payload))
	for _, q := range payload {
		name, ok := byTicker[q.Ticker]
		if !ok {
			fmt.Printf("[TERMINAL] Unrequested ticker in response: %s\n", q.Ticker)
			continue
		}
		currency := q.Currency
		if currency == "" {
			currency = "USD"
		}
		out = append(out, models.MetalPrice{
			Ticker:        q.Ticker,
			MetalName:     name,
			Price:         q.Price,
			Currency:      currency,
			Timestamp:     now,
			Bid:           q.Bid,
			Ask:           q.Ask,
			Volume:        q.Volume,
			OpenPrice:     q.Open,
			High:          q.High,
			Low:           q.Low,
			PreviousClose: q.PreviousClose,
		})
	}
	return out, nil
}
