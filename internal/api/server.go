package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Staysteady/bpipe/internal/auth"
	"github.com/Staysteady/bpipe/internal/db"
	"github.com/Staysteady/bpipe/internal/models"
	"github.com/Staysteady/bpipe/internal/repository"
)

const maxStatsDays = 365

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type Server struct {
	database  *db.DB
	prices    *repository.PriceRepo
	summaries *repository.SummaryRepo
	alerts    *repository.AlertRepo
	auth      *auth.Manager

	httpServer *http.Server
}

func NewServer(database *db.DB, authMgr *auth.Manager, port int, corsOrigin string) *Server {
	s := &Server{
		database:  database,
		prices:    repository.NewPriceRepo(database),
		summaries: repository.NewSummaryRepo(database),
		alerts:    repository.NewAlertRepo(database),
		auth:      authMgr,
	}

	mux := http.NewServeMux()

	// Auth routes (login/register are the only unauthenticated POSTs)
	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /v1/auth/me", s.handleMe)

	// Price routes
	mux.HandleFunc("GET /v1/prices/latest", s.handleLatestPrices)
	mux.HandleFunc("GET /v1/prices/{metal}/history", s.handlePriceHistory)
	mux.HandleFunc("GET /v1/prices/{metal}/stats", s.handlePriceStats)

	// Daily summary routes
	mux.HandleFunc("GET /v1/summaries/{metal}/{date}", s.handleGetSummary)
	mux.HandleFunc("POST /v1/summaries/{metal}/{date}", s.handleBuildSummary)

	// Alert routes
	mux.HandleFunc("GET /v1/alerts", s.handleActiveAlerts)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	// CORS sits outermost so preflights are answered before the session
	// guard and error responses still carry the CORS headers.
	handler := corsMiddleware(s.sessionMiddleware(mux), corsOrigin)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

type ctxKey int

const userKey ctxKey = 0

// publicPath lists the routes reachable without a session.
func publicPath(path string) bool {
	switch path {
	case "/health", "/v1/auth/login", "/v1/auth/register":
		return true
	}
	return false
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			writeError(w, http.StatusUnauthorized, "expected Bearer token")
			return
		}

		user, err := s.auth.ValidateSession(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) {
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			writeStoreError(w, err, "session validation failed")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func parseDays(r *http.Request, defaultDays int) int {
	v := r.URL.Query().Get("days")
	if v == "" {
		return defaultDays
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultDays
	}
	if n > maxStatsDays {
		return maxStatsDays
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a closed database to 503 so the dashboard can show a
// degraded-state indicator instead of crashing.
func writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, db.ErrNotConnected) {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	fmt.Printf("[API] %s: %v\n", msg, err)
	writeError(w, http.StatusInternalServerError, msg)
}
