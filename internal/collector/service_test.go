package collector

import (
	"context"
	"testing"
	"time"

	"github.com/Staysteady/bpipe/internal/alerts"
	"github.com/Staysteady/bpipe/internal/config"
	"github.com/Staysteady/bpipe/internal/marketdata"
	"github.com/Staysteady/bpipe/internal/notifications"
	"github.com/Staysteady/bpipe/internal/repository"
	"github.com/Staysteady/bpipe/internal/testutil"
)

func setupService(t *testing.T) (*Service, *repository.PriceRepo, *repository.AlertRepo) {
	t.Helper()
	d := testutil.SetupDB(t)
	prices := repository.NewPriceRepo(d)
	alertRepo := repository.NewAlertRepo(d)

	cfg := &config.Config{
		Metals: map[string]string{
			"copper": "LMCADY03 Comdty",
			"zinc":   "LMZSDY03 Comdty",
		},
		PollIntervalSeconds: 60,
	}

	engine := alerts.NewEngine(alerts.Thresholds{
		PriceLimits: map[string]float64{"copper": 1}, // triggers on any mock quote
	})
	notify := notifications.NewSender("", "test")

	svc := NewService(cfg, marketdata.NewMockTerminal(), prices, alertRepo, engine, notify)
	return svc, prices, alertRepo
}

func TestPollOnceStoresQuotes(t *testing.T) {
	svc, prices, _ := setupService(t)
	ctx := context.Background()

	if err := svc.source.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := svc.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	latest, err := prices.Latest(ctx, nil)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("stored %d metals, want 2", len(latest))
	}
	for _, p := range latest {
		if p.Price <= 0 || p.Volume == nil {
			t.Fatalf("stored quote incomplete: %+v", p)
		}
	}

	// A second poll appends fresh rows rather than replacing them.
	if err := svc.PollOnce(ctx); err != nil {
		t.Fatalf("second PollOnce: %v", err)
	}
	history, err := prices.Range(ctx, "copper",
		time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("copper history rows = %d, want 2", len(history))
	}
}

func TestPollOnceTriggersAlerts(t *testing.T) {
	svc, _, alertRepo := setupService(t)
	ctx := context.Background()

	if err := svc.source.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := svc.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	// The price limit of 1 guarantees the threshold rule fires for copper.
	active, err := alertRepo.Active(ctx, "copper")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d copper alerts, want 1", len(active))
	}
	if active[0].ID != "copper:price_threshold" {
		t.Fatalf("alert id = %q", active[0].ID)
	}

	// Re-polling re-arms the same alert row instead of adding another.
	if err := svc.PollOnce(ctx); err != nil {
		t.Fatalf("second PollOnce: %v", err)
	}
	active, err = alertRepo.Active(ctx, "copper")
	if err != nil {
		t.Fatalf("Active again: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("alerts piled up to %d rows", len(active))
	}
}

func TestPollOnceRequiresConnection(t *testing.T) {
	svc, _, _ := setupService(t)
	if err := svc.PollOnce(context.Background()); err == nil {
		t.Fatal("PollOnce succeeded without a terminal connection")
	}
}

func TestStartStop(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if svc.Running() {
		t.Fatal("running before Start")
	}
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !svc.Running() {
		t.Fatal("not running after Start")
	}
	// Double Start is a no-op.
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start twice: %v", err)
	}

	svc.Stop()
	if svc.Running() {
		t.Fatal("still running after Stop")
	}
	svc.Stop()
}
