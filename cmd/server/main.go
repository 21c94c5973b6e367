package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Staysteady/bpipe/internal/alerts"
	"github.com/Staysteady/bpipe/internal/api"
	"github.com/Staysteady/bpipe/internal/auth"
	"github.com/Staysteady/bpipe/internal/collector"
	"github.com/Staysteady/bpipe/internal/config"
	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/marketdata"
	"github.com/Staysteady/bpipe/internal/notifications"
	"github.com/Staysteady/bpipe/internal/repository"
	"github.com/Staysteady/bpipe/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║      bpipe metals terminal v0.3      ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Database
	fmt.Printf("\n[DB] Opening %s ...\n", cfg.DatabasePath)
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		database.Close()
		fmt.Println("[DB] Database closed")
	}()
	fmt.Println("[DB] Schema ready")

	// Repos
	priceRepo := repository.NewPriceRepo(database)
	summaryRepo := repository.NewSummaryRepo(database)
	alertRepo := repository.NewAlertRepo(database)
	userRepo := repository.NewUserRepo(database)
	sessionRepo := repository.NewSessionRepo(database)

	// Auth facade
	authMgr := auth.NewManager(userRepo, sessionRepo,
		time.Duration(cfg.SessionDurationHours)*time.Hour)

	// Terminal feed
	var source marketdata.Source
	if cfg.TerminalMode == "live" {
		source = marketdata.NewLiveTerminal(cfg.TerminalURL)
	} else {
		source = marketdata.NewMockTerminal()
	}

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.SenderName)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. API server
	srv := api.NewServer(database, authMgr, cfg.APIPort, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 2. Price collector
	engine := alerts.NewEngine(alerts.Thresholds{
		PriceChangePct:  cfg.AlertPriceChangePct,
		VolumeSpikeMult: cfg.AlertVolumeSpikeMult,
		PriceLimits:     cfg.AlertPriceLimits,
	})
	svc := collector.NewService(cfg, source, priceRepo, alertRepo, engine, notify)
	if err := svc.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[COLLECTOR] Start failed: %v\n", err)
		os.Exit(1)
	}

	// 3. Rollup/sweep scheduler
	sched := scheduler.New(summaryRepo, sessionRepo, scheduler.Config{
		RollupSpec: cfg.RollupCron,
		SweepSpec:  cfg.SweepCron,
		Metals:     cfg.MetalNames(),
	})
	if err := sched.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "[SCHEDULER] Start failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	sched.Stop()
	svc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}
