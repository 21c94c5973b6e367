package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Staysteady/bpipe/internal/auth"
	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
	"github.com/Staysteady/bpipe/internal/repository"
	"github.com/Staysteady/bpipe/internal/testutil"
)

type testEnv struct {
	srv      *httptest.Server
	database *db.DB
	prices   *repository.PriceRepo
}

func setupAPI(t *testing.T) *testEnv {
	t.Helper()
	d := testutil.SetupDB(t)
	mgr := auth.NewManager(repository.NewUserRepo(d), repository.NewSessionRepo(d), time.Hour)

	s := NewServer(d, mgr, 0, "*")
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{srv: ts, database: d, prices: repository.NewPriceRepo(d)}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// registerAndLogin provisions a user through the API and returns a live token.
func (e *testEnv) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	resp := e.request(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}

	resp = e.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "hunter22",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	session := decode[sessionResponse](t, resp)
	if session.Token == "" {
		t.Fatal("login returned empty token")
	}
	return session.Token
}

func TestAuthFlow(t *testing.T) {
	env := setupAPI(t)
	token := env.registerAndLogin(t, "apiuser")

	resp := env.request(t, http.MethodGet, "/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want 200", resp.StatusCode)
	}
	me := decode[models.User](t, resp)
	if me.Username != "apiuser" {
		t.Fatalf("me resolved %q", me.Username)
	}

	resp = env.request(t, http.MethodPost, "/v1/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupAPI(t)

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing username", map[string]string{"email": "a@b.c", "password": "longenough"}, http.StatusBadRequest},
		{"missing email", map[string]string{"username": "a", "password": "longenough"}, http.StatusBadRequest},
		{"short password", map[string]string{"username": "a", "email": "a@b.c", "password": "tiny"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := env.request(t, http.MethodPost, "/v1/auth/register", "", tc.body)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}

	// Duplicate registration conflicts.
	env.registerAndLogin(t, "taken")
	resp := env.request(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username": "taken", "email": "new@example.com", "password": "hunter22",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", resp.StatusCode)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupAPI(t)
	env.registerAndLogin(t, "victim")

	resp := env.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "victim", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password login = %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := setupAPI(t)

	for _, path := range []string{
		"/v1/prices/latest",
		"/v1/prices/copper/history",
		"/v1/prices/copper/stats",
		"/v1/summaries/copper/2025-06-10",
		"/v1/alerts",
		"/v1/auth/me",
	} {
		resp := env.request(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token = %d, want 401", path, resp.StatusCode)
		}
	}

	// Garbage tokens are rejected the same way.
	resp := env.request(t, http.MethodGet, "/v1/prices/latest", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d, want 401", resp.StatusCode)
	}

	// Health stays open.
	resp = env.request(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health without token = %d, want 200", resp.StatusCode)
	}
	health := decode[healthResponse](t, resp)
	if health.Status != "ok" || health.Services.Database != "connected" {
		t.Fatalf("health = %+v", health)
	}
}

func TestCORSHeaders(t *testing.T) {
	env := setupAPI(t)

	req, _ := http.NewRequest(http.MethodOptions, env.srv.URL+"/v1/prices/latest", nil)
	resp, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preflight status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got == "" {
		t.Fatal("allow-headers missing")
	}

	// Rejections carry the CORS headers too, so the browser can read them.
	denied := env.request(t, http.MethodGet, "/v1/prices/latest", "", nil)
	if denied.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated GET = %d, want 401", denied.StatusCode)
	}
	if got := denied.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("401 allow-origin = %q, want *", got)
	}
}

func TestPriceEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.registerAndLogin(t, "trader")
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	for i, v := range []float64{8500, 8510, 8505} {
		p := models.MetalPrice{
			Ticker:    "LMCADY03 Comdty",
			MetalName: "copper",
			Price:     v,
			Currency:  "USD",
			Timestamp: now.Add(time.Duration(i-2) * time.Hour),
		}
		if err := env.prices.Insert(ctx, &p); err != nil {
			t.Fatalf("seed price: %v", err)
		}
	}

	// Latest
	resp := env.request(t, http.MethodGet, "/v1/prices/latest", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest status = %d", resp.StatusCode)
	}
	latest := decode[[]models.MetalPrice](t, resp)
	if len(latest) != 1 || latest[0].Price != 8505 {
		t.Fatalf("latest = %+v, want single copper row at 8505", latest)
	}

	// Latest filtered to a metal with no data comes back empty, not null.
	resp = env.request(t, http.MethodGet, "/v1/prices/latest?metals=tin", token, nil)
	empty := decode[[]models.MetalPrice](t, resp)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("filtered latest = %+v, want empty array", empty)
	}

	// History over an explicit window
	start := url.QueryEscape(now.Add(-3 * time.Hour).Format(time.RFC3339))
	end := url.QueryEscape(now.Format(time.RFC3339))
	resp = env.request(t, http.MethodGet,
		fmt.Sprintf("/v1/prices/copper/history?start=%s&end=%s", start, end), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	history := decode[[]models.MetalPrice](t, resp)
	if len(history) != 3 {
		t.Fatalf("history rows = %d, want 3", len(history))
	}

	resp = env.request(t, http.MethodGet, "/v1/prices/copper/history?start=notadate", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad window status = %d, want 400", resp.StatusCode)
	}

	// A window with no rows is an empty array, not null.
	resp = env.request(t, http.MethodGet,
		"/v1/prices/copper/history?start=1990-01-01&end=1990-01-02", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("empty window status = %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read empty history: %v", err)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("empty history body = %q, want []", raw)
	}

	// Stats
	resp = env.request(t, http.MethodGet, "/v1/prices/copper/stats?days=7", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	stats := decode[models.PriceStats](t, resp)
	if stats.DataPoints != 3 || stats.MaxPrice != 8510 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSummaryEndpoints(t *testing.T) {
	env := setupAPI(t)
	token := env.registerAndLogin(t, "analyst")
	ctx := context.Background()

	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for hour, v := range map[int]float64{8: 8500, 16: 8480} {
		p := models.MetalPrice{
			Ticker: "LMCADY03 Comdty", MetalName: "copper",
			Price: v, Currency: "USD",
			Timestamp: day.Add(time.Duration(hour) * time.Hour),
		}
		if err := env.prices.Insert(ctx, &p); err != nil {
			t.Fatalf("seed price: %v", err)
		}
	}

	// Nothing rolled up yet.
	resp := env.request(t, http.MethodGet, "/v1/summaries/copper/2025-06-10", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get before build = %d, want 404", resp.StatusCode)
	}

	// Build, then read back.
	resp = env.request(t, http.MethodPost, "/v1/summaries/copper/2025-06-10", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("build status = %d", resp.StatusCode)
	}
	built := decode[models.DailySummary](t, resp)
	if built.OpenPrice != 8500 || built.ClosePrice != 8480 {
		t.Fatalf("built summary = %+v", built)
	}

	resp = env.request(t, http.MethodGet, "/v1/summaries/copper/2025-06-10", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get after build = %d", resp.StatusCode)
	}

	// Day with no observations.
	resp = env.request(t, http.MethodPost, "/v1/summaries/copper/2025-01-01", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("build empty day = %d, want 404", resp.StatusCode)
	}

	// Malformed dates.
	resp = env.request(t, http.MethodGet, "/v1/summaries/copper/June-10", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date = %d, want 400", resp.StatusCode)
	}
	resp = env.request(t, http.MethodGet, "/v1/summaries/copper/2025-13-45", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("impossible date = %d, want 400", resp.StatusCode)
	}
}

func TestAlertEndpoint(t *testing.T) {
	env := setupAPI(t)
	token := env.registerAndLogin(t, "watcher")
	ctx := context.Background()

	alertRepo := repository.NewAlertRepo(env.database)
	if err := alertRepo.Put(ctx, &models.Alert{
		ID: "copper:price_threshold", MetalName: "copper",
		AlertType: models.AlertPriceThreshold, TriggeredAt: time.Now(),
		Message: "copper above limit", IsActive: true,
	}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	resp := env.request(t, http.MethodGet, "/v1/alerts", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alerts status = %d", resp.StatusCode)
	}
	alerts := decode[[]models.Alert](t, resp)
	if len(alerts) != 1 || alerts[0].MetalName != "copper" {
		t.Fatalf("alerts = %+v", alerts)
	}

	// Filter misses return an empty array.
	resp = env.request(t, http.MethodGet, "/v1/alerts?metal=tin", token, nil)
	none := decode[[]models.Alert](t, resp)
	if none == nil || len(none) != 0 {
		t.Fatalf("filtered alerts = %+v, want empty array", none)
	}
}

func TestClosedDatabaseReturns503(t *testing.T) {
	env := setupAPI(t)
	token := env.registerAndLogin(t, "degraded")

	env.database.Close()

	resp := env.request(t, http.MethodGet, "/v1/prices/latest", token, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("guarded GET with closed store = %d, want 503", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["error"] != "database unavailable" {
		t.Fatalf("error body = %q", body["error"])
	}

	// Health stays up and reports the store as down.
	resp = env.request(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health with closed store = %d, want 200", resp.StatusCode)
	}
	health := decode[healthResponse](t, resp)
	if health.Services.Database != "disconnected" {
		t.Fatalf("health database status = %q, want disconnected", health.Services.Database)
	}
}

func TestValidateDate(t *testing.T) {
	valid := []string{"2025-06-10", "1999-01-01", "2025-12-31"}
	for _, d := range valid {
		if !validateDate(d) {
			t.Fatalf("validateDate(%q) = false", d)
		}
	}
	invalid := []string{"", "2025-6-1", "June-10", "2025-13-01", "2025-02-30", "20250610"}
	for _, d := range invalid {
		if validateDate(d) {
			t.Fatalf("validateDate(%q) = true", d)
		}
	}
}

func TestParseDays(t *testing.T) {
	mk := func(q string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/prices/copper/stats"+q, nil)
		return r
	}

	if got := parseDays(mk(""), 30); got != 30 {
		t.Fatalf("default = %d, want 30", got)
	}
	if got := parseDays(mk("?days=7"), 30); got != 7 {
		t.Fatalf("days=7 = %d", got)
	}
	if got := parseDays(mk("?days=0"), 30); got != 30 {
		t.Fatalf("days=0 = %d, want default", got)
	}
	if got := parseDays(mk("?days=-5"), 30); got != 30 {
		t.Fatalf("negative = %d, want default", got)
	}
	if got := parseDays(mk("?days=junk"), 30); got != 30 {
		t.Fatalf("junk = %d, want default", got)
	}
	if got := parseDays(mk("?days=9999"), 30); got != maxStatsDays {
		t.Fatalf("oversized = %d, want cap %d", got, maxStatsDays)
	}
}
