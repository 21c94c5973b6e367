package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Staysteady/bpipe/internal/models"
	"github.com/Staysteady/bpipe/internal/repository"
	"github.com/Staysteady/bpipe/internal/testutil"
)

func TestRunRollups(t *testing.T) {
	d := testutil.SetupDB(t)
	prices := repository.NewPriceRepo(d)
	summaries := repository.NewSummaryRepo(d)
	sessions := repository.NewSessionRepo(d)
	ctx := context.Background()

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		metal string
		hour  int
		price float64
	}{
		{"copper", 8, 8500},
		{"copper", 16, 8480},
		{"zinc", 9, 2600},
	}
	for _, s := range seed {
		p := models.MetalPrice{
			Ticker: s.metal, MetalName: s.metal, Price: s.price,
			Currency: "USD", Timestamp: day.Add(time.Duration(s.hour) * time.Hour),
		}
		if err := prices.Insert(ctx, &p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// tin has no data that day and must simply be skipped.
	sched := New(summaries, sessions, Config{
		Metals: []string{"copper", "zinc", "tin"},
	})
	sched.RunRollups(ctx, "2025-06-10")

	copper, err := summaries.Get(ctx, "2025-06-10", "copper")
	if err != nil {
		t.Fatalf("Get copper: %v", err)
	}
	if copper == nil || copper.OpenPrice != 8500 || copper.ClosePrice != 8480 {
		t.Fatalf("copper summary = %+v", copper)
	}

	zinc, err := summaries.Get(ctx, "2025-06-10", "zinc")
	if err != nil {
		t.Fatalf("Get zinc: %v", err)
	}
	if zinc == nil || zinc.OpenPrice != 2600 {
		t.Fatalf("zinc summary = %+v", zinc)
	}

	tin, err := summaries.Get(ctx, "2025-06-10", "tin")
	if err != nil {
		t.Fatalf("Get tin: %v", err)
	}
	if tin != nil {
		t.Fatalf("tin rollup appeared with no data: %+v", tin)
	}
}

func TestSweepSessions(t *testing.T) {
	d := testutil.SetupDB(t)
	summaries := repository.NewSummaryRepo(d)
	sessions := repository.NewSessionRepo(d)
	ctx := context.Background()

	now := time.Now()
	expired := models.UserSession{
		SessionID: "expired-token", UserID: "u1",
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		IsActive: true,
	}
	if err := sessions.Create(ctx, &expired); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	sched := New(summaries, sessions, Config{})
	sched.SweepSessions(ctx)

	if got, _ := sessions.Get(ctx, "expired-token"); got != nil {
		t.Fatalf("expired session survived the sweep: %+v", got)
	}
}

func TestStartStop(t *testing.T) {
	d := testutil.SetupDB(t)
	sched := New(repository.NewSummaryRepo(d), repository.NewSessionRepo(d), Config{
		Metals: []string{"copper"},
	})

	if sched.Running() {
		t.Fatal("running before Start")
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sched.Running() {
		t.Fatal("not running after Start")
	}
	// Second Start is a no-op.
	if err := sched.Start(); err != nil {
		t.Fatalf("Start twice: %v", err)
	}

	sched.Stop()
	if sched.Running() {
		t.Fatal("still running after Stop")
	}
	// Second Stop is a no-op too.
	sched.Stop()
}

func TestBadCronSpec(t *testing.T) {
	d := testutil.SetupDB(t)
	sched := New(repository.NewSummaryRepo(d), repository.NewSessionRepo(d), Config{
		RollupSpec: "not a cron spec",
	})
	if err := sched.Start(); err == nil {
		sched.Stop()
		t.Fatal("Start accepted a malformed cron spec")
	}
}
