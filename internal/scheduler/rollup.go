// Package scheduler drives the recurring maintenance work: daily OHLC
// rollups per metal and the expired-session sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Staysteady/bpipe/internal/repository"
)

type Config struct {
	RollupSpec string // cron spec, e.g. "5 0 * * *"
	SweepSpec  string // cron spec, e.g. "0 * * * *"
	Metals     []string
}

type Scheduler struct {
	summaries *repository.SummaryRepo
	sessions  *repository.SessionRepo
	cfg       Config

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func New(summaries *repository.SummaryRepo, sessions *repository.SessionRepo, cfg Config) *Scheduler {
	if cfg.RollupSpec == "" {
		cfg.RollupSpec = "5 0 * * *"
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "0 * * * *"
	}
	return &Scheduler{summaries: summaries, sessions: sessions, cfg: cfg}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		fmt.Println("[SCHEDULER] Already running")
		return nil
	}

	c := cron.New()

	// Shortly after midnight: close out yesterday's rollups.
	if _, err := c.AddFunc(s.cfg.RollupSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()
		yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
		s.RunRollups(ctx, yesterday)
	}); err != nil {
		return fmt.Errorf("add rollup job: %w", err)
	}

	if _, err := c.AddFunc(s.cfg.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.SweepSessions(ctx)
	}); err != nil {
		return fmt.Errorf("add sweep job: %w", err)
	}

	c.Start()
	s.cron = c
	s.running = true
	fmt.Printf("[SCHEDULER] Started (rollups %q, sweep %q)\n", s.cfg.RollupSpec, s.cfg.SweepSpec)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.running = false
	fmt.Println("[SCHEDULER] Stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunRollups builds the daily summary for every configured metal on the
// given date. A metal without observations that day is skipped, not an
// error; a rerun overwrites deterministically.
func (s *Scheduler) RunRollups(ctx context.Context, date string) {
	fmt.Printf("[SCHEDULER] Building daily summaries for %s...\n", date)
	built := 0
	for _, metal := range s.cfg.Metals {
		summary, err := s.summaries.Build(ctx, date, metal)
		if err != nil {
			fmt.Printf("[SCHEDULER] Rollup failed for %s/%s: %v\n", metal, date, err)
			continue
		}
		if summary == nil {
			continue // no observations that day
		}
		built++
		fmt.Printf("[SCHEDULER] %s %s: O %.2f H %.2f L %.2f C %.2f (%+.2f%%)\n",
			date, metal, summary.OpenPrice, summary.HighPrice,
			summary.LowPrice, summary.ClosePrice, summary.PriceChangePct)
	}
	fmt.Printf("[SCHEDULER] Rollups complete: %d/%d metals\n", built, len(s.cfg.Metals))
}

// SweepSessions deactivates expired sessions.
func (s *Scheduler) SweepSessions(ctx context.Context) {
	swept, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		fmt.Printf("[SCHEDULER] Session sweep failed: %v\n", err)
		return
	}
	if swept > 0 {
		fmt.Printf("[SCHEDULER] Swept %d expired sessions\n", swept)
	}
}
