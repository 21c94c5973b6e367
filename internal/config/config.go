package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultMetals maps metal name to its LME terminal ticker.
var DefaultMetals = map[string]string{
	"copper":   "LMCADY03 Comdty",
	"aluminum": "LMAHDY03 Comdty",
	"zinc":     "LMZSDY03 Comdty",
	"nickel":   "LMNIDY03 Comdty",
	"lead":     "LMPBDY03 Comdty",
	"tin":      "LMSNDY03 Comdty",
}

type Config struct {
	// Database
	DatabasePath string

	// Terminal feed
	TerminalMode string // "mock" or "live"
	TerminalURL  string
	Metals       map[string]string // metal name -> ticker

	// Ingestion timing
	PollIntervalSeconds int

	// Rollups and session sweep (cron specs)
	RollupCron string
	SweepCron  string

	// Alerts
	AlertPriceChangePct  float64
	AlertVolumeSpikeMult float64
	AlertPriceLimits     map[string]float64 // metal name -> absolute price limit

	// Notifications
	WebhookURL string
	SenderName string

	// API
	APIPort         int
	CORSAllowOrigin string

	// Auth
	SessionDurationHours int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: envStr("DATABASE_PATH", "data/metals_data.duckdb"),

		TerminalMode: envStr("TERMINAL_MODE", "mock"),
		TerminalURL:  envStr("TERMINAL_URL", ""),
		Metals:       envMap("METALS", DefaultMetals),

		PollIntervalSeconds: envInt("POLL_INTERVAL_SECONDS", 5),

		RollupCron: envStr("ROLLUP_CRON", "5 0 * * *"),
		SweepCron:  envStr("SWEEP_CRON", "0 * * * *"),

		AlertPriceChangePct:  envFloat("ALERT_PRICE_CHANGE_PCT", 2.0),
		AlertVolumeSpikeMult: envFloat("ALERT_VOLUME_SPIKE_MULT", 3.0),
		AlertPriceLimits:     envFloatMap("ALERT_PRICE_LIMITS"),

		WebhookURL: envStr("WEBHOOK_URL", ""),
		SenderName: envStr("SENDER_NAME", "bpipe"),

		APIPort:         envInt("API_PORT", 3001),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		SessionDurationHours: envInt("SESSION_DURATION_HOURS", 24),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	switch c.TerminalMode {
	case "mock", "live":
	default:
		errs = append(errs, fmt.Sprintf("TERMINAL_MODE must be mock or live, got %q", c.TerminalMode))
	}
	if c.TerminalMode == "live" && c.TerminalURL == "" {
		errs = append(errs, "TERMINAL_URL is required in live mode")
	}
	if len(c.Metals) == 0 {
		errs = append(errs, "METALS must name at least one metal")
	}
	if c.PollIntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	if c.SessionDurationHours <= 0 {
		errs = append(errs, "SESSION_DURATION_HOURS must be positive")
	}

	if c.WebhookURL == "" {
		fmt.Println("[WARN] WEBHOOK_URL not set — triggered alerts will only be logged")
	}
	if c.TerminalMode == "mock" {
		fmt.Println("[WARN] TERMINAL_MODE=mock — quotes are simulated, not real market data")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Metals Terminal Backend Configuration ===")
	fmt.Printf("Database: %s\n", c.DatabasePath)
	fmt.Printf("Terminal mode: %s\n", c.TerminalMode)
	if c.TerminalMode == "live" {
		fmt.Printf("Terminal URL: %s\n", c.TerminalURL)
	}
	fmt.Printf("Metals: %s\n", strings.Join(c.MetalNames(), ", "))
	fmt.Println("---------------------------------------------")
	fmt.Printf("Poll interval: %ds\n", c.PollIntervalSeconds)
	fmt.Printf("Rollup schedule: %q\n", c.RollupCron)
	fmt.Printf("Session sweep schedule: %q\n", c.SweepCron)
	fmt.Println("---------------------------------------------")
	fmt.Println("Alert thresholds:")
	fmt.Printf("  Price change: %.1f%%\n", c.AlertPriceChangePct)
	fmt.Printf("  Volume spike: %.1fx average\n", c.AlertVolumeSpikeMult)
	for _, m := range sortedKeysFloat(c.AlertPriceLimits) {
		fmt.Printf("  Price limit %s: $%.2f\n", m, c.AlertPriceLimits[m])
	}
	fmt.Println("---------------------------------------------")
	fmt.Printf("API port: %d\n", c.APIPort)
	fmt.Printf("Session duration: %dh\n", c.SessionDurationHours)
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("=============================================")
}

// MetalNames returns the configured metal names in a stable order.
func (c *Config) MetalNames() []string {
	names := make([]string, 0, len(c.Metals))
	for m := range c.Metals {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envMap parses "key=value,key=value" pairs.
func envMap(key string, fallback map[string]string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || val == "" {
			continue
		}
		out[k] = val
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envFloatMap(key string) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range envMap(key, nil) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		}
	}
	return out
}

func sortedKeysFloat(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
