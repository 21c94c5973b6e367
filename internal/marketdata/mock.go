package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/Staysteady/bpipe/internal/models"
)

// MockTerminal simulates the terminal feed. Quotes are a deterministic
// function of the ticker string, so tests can assert exact values.
type MockTerminal struct {
	mu        sync.Mutex
	connected bool
}

func NewMockTerminal() *MockTerminal {
	return &MockTerminal{}
}

func (m *MockTerminal) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	fmt.Println("[TERMINAL] Mock terminal connected")
	return nil
}

func (m *MockTerminal) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	fmt.Println("[TERMINAL] Mock terminal disconnected")
}

func (m *MockTerminal) Quotes(ctx context.Context, metals map[string]string) ([]models.MetalPrice, error) {
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	names := make([]string, 0, len(metals))
	for name := range metals {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	out := make([]models.MetalPrice, 0, len(names))
	for _, name := range names {
		ticker := metals[name]
		h := tickerHash(ticker)
		offset := float64(h % 1000)

		bid := 8499.0 + offset
		ask := 8501.0 + offset
		volume := 15000.0 + float64(h%5000)
		open := 8480.0 + offset
		high := 8520.0 + offset
		low := 8460.0 + offset
		prev := 8495.0 + offset

		out = append(out, models.MetalPrice{
			Ticker:        ticker,
			MetalName:     name,
			Price:         8500.0 + offset,
			Currency:      "USD",
			Timestamp:     now,
			Bid:           &bid,
			Ask:           &ask,
			Volume:        &volume,
			OpenPrice:     &open,
			High:          &high,
			Low:           &low,
			PreviousClose: &prev,
		})
	}
	return out, nil
}

// tickerHash spreads mock quotes per ticker, stable across runs. Callers
// reduce it: mod 1000 for the price offset, mod 5000 for the volume spread.
func tickerHash(ticker string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(ticker))
	return h.Sum32()
}
