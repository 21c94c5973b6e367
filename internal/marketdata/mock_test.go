package marketdata

import (
	"context"
	"errors"
	"testing"
)

var testMetals = map[string]string{
	"copper": "LMCADY03 Comdty",
	"zinc":   "LMZSDY03 Comdty",
	"tin":    "LMSNDY03 Comdty",
}

func TestMockRequiresConnect(t *testing.T) {
	m := NewMockTerminal()

	if _, err := m.Quotes(context.Background(), testMetals); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("quotes before connect = %v, want ErrNotConnected", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := m.Quotes(context.Background(), testMetals); err != nil {
		t.Fatalf("quotes after connect: %v", err)
	}

	m.Disconnect()
	if _, err := m.Quotes(context.Background(), testMetals); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("quotes after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestMockQuotesDeterministic(t *testing.T) {
	m := NewMockTerminal()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	first, err := m.Quotes(context.Background(), testMetals)
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(first) != len(testMetals) {
		t.Fatalf("got %d quotes, want %d", len(first), len(testMetals))
	}

	// Sorted by metal name.
	if first[0].MetalName != "copper" || first[1].MetalName != "tin" || first[2].MetalName != "zinc" {
		t.Fatalf("order = %s, %s, %s", first[0].MetalName, first[1].MetalName, first[2].MetalName)
	}

	second, err := m.Quotes(context.Background(), testMetals)
	if err != nil {
		t.Fatalf("Quotes again: %v", err)
	}
	for i := range first {
		if first[i].Price != second[i].Price {
			t.Fatalf("%s price drifted between polls: %f vs %f",
				first[i].MetalName, first[i].Price, second[i].Price)
		}
	}
}

func TestMockQuoteShape(t *testing.T) {
	m := NewMockTerminal()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	quotes, err := m.Quotes(context.Background(), map[string]string{"copper": "LMCADY03 Comdty"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	q := quotes[0]

	if q.Ticker != "LMCADY03 Comdty" || q.Currency != "USD" {
		t.Fatalf("quote identity = %s/%s", q.Ticker, q.Currency)
	}
	if q.Price < 8500 || q.Price >= 9500 {
		t.Fatalf("price %f outside the mock band", q.Price)
	}
	if q.Bid == nil || q.Ask == nil || q.Volume == nil {
		t.Fatal("mock quote missing bid/ask/volume")
	}
	if *q.Bid >= q.Price || *q.Ask <= q.Price {
		t.Fatalf("bid/ask %f/%f do not straddle price %f", *q.Bid, *q.Ask, q.Price)
	}
	if q.High == nil || q.Low == nil || *q.High <= *q.Low {
		t.Fatal("mock high/low inverted or missing")
	}
	if *q.Volume < 15000 || *q.Volume >= 20000 {
		t.Fatalf("volume %f outside the mock band", *q.Volume)
	}
}

func TestMockVolumeUsesFullSpread(t *testing.T) {
	m := NewMockTerminal()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	quotes, err := m.Quotes(context.Background(), testMetals)
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}

	// Volume spreads over mod 5000 of the raw hash, independent of the
	// mod-1000 price offset.
	for _, q := range quotes {
		want := 15000.0 + float64(tickerHash(q.Ticker)%5000)
		if *q.Volume != want {
			t.Fatalf("%s volume = %f, want %f", q.MetalName, *q.Volume, want)
		}
	}

	// If every volume collapsed onto the price offset, the spread is lost.
	collapsed := true
	for _, q := range quotes {
		if *q.Volume-15000 != q.Price-8500 {
			collapsed = false
			break
		}
	}
	if collapsed {
		t.Fatal("volume spread identical to price offset for every ticker")
	}
}
