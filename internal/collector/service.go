// Package collector runs the ingestion loop: poll the terminal, persist the
// batch, evaluate alert rules, notify.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Staysteady/bpipe/internal/alerts"
	"github.com/Staysteady/bpipe/internal/config"
	"github.com/Staysteady/bpipe/internal/marketdata"
	"github.com/Staysteady/bpipe/internal/models"
	"github.com/Staysteady/bpipe/internal/notifications"
	"github.com/Staysteady/bpipe/internal/repository"
)

// statsWindowDays is the trailing window used for the volume-spike baseline.
const statsWindowDays = 7

type Service struct {
	source marketdata.Source
	prices *repository.PriceRepo
	alerts *repository.AlertRepo
	engine *alerts.Engine
	notify *notifications.Sender
	metals map[string]string
	every  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewService(cfg *config.Config, source marketdata.Source,
	prices *repository.PriceRepo, alertRepo *repository.AlertRepo,
	engine *alerts.Engine, notify *notifications.Sender,
) *Service {
	return &Service{
		source: source,
		prices: prices,
		alerts: alertRepo,
		engine: engine,
		notify: notify,
		metals: cfg.Metals,
		every:  time.Duration(cfg.PollIntervalSeconds) * time.Second,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		fmt.Println("[COLLECTOR] Already running")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.source.Connect(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("connect terminal: %w", err)
	}

	go func() {
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()

		// First poll immediately so the dashboard has data on startup.
		if err := s.PollOnce(ctx); err != nil {
			fmt.Printf("[COLLECTOR] Initial poll failed: %v\n", err)
		}

		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.PollOnce(ctx); err != nil {
					fmt.Printf("[COLLECTOR] Poll failed: %v\n", err)
				}
			}
		}
	}()

	fmt.Printf("[COLLECTOR] Started (every %s, %d metals)\n", s.every, len(s.metals))
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.source.Disconnect()
	fmt.Println("[COLLECTOR] Stopped")
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PollOnce runs a single fetch-store-evaluate cycle. Exposed for manual
// triggering and tests.
func (s *Service) PollOnce(ctx context.Context) error {
	quotes, err := s.source.Quotes(ctx, s.metals)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}
	if len(quotes) == 0 {
		return nil
	}

	// Snapshot the previous observation per metal before the insert so the
	// percentage-change rule compares against genuinely older data.
	previous := make(map[string]models.MetalPrice)
	if latest, err := s.prices.Latest(ctx, nil); err == nil {
		for _, p := range latest {
			previous[p.MetalName] = p
		}
	} else {
		fmt.Printf("[COLLECTOR] Warning: could not load previous prices: %v\n", err)
	}

	stored, err := s.prices.InsertBatch(ctx, quotes)
	if err != nil {
		return fmt.Errorf("store batch: %w", err)
	}
	fmt.Printf("[COLLECTOR] Stored %d/%d quotes\n", stored, len(quotes))

	for i := range quotes {
		s.evaluateAlerts(ctx, quotes[i], previous)
	}
	return nil
}

func (s *Service) evaluateAlerts(ctx context.Context, quote models.MetalPrice, previous map[string]models.MetalPrice) {
	var prev *models.MetalPrice
	if p, ok := previous[quote.MetalName]; ok {
		prev = &p
	}

	stats, err := s.prices.Statistics(ctx, quote.MetalName, statsWindowDays)
	if err != nil {
		fmt.Printf("[ALERTS] Could not load stats for %s: %v\n", quote.MetalName, err)
		stats = nil
	}

	for _, a := range s.engine.Evaluate(quote, prev, stats) {
		if err := s.alerts.Put(ctx, &a); err != nil {
			fmt.Printf("[ALERTS] Failed to store alert %s: %v\n", a.ID, err)
			continue
		}
		s.notify.SendAlert(&a)
	}
}
