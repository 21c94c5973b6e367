package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Staysteady/bpipe/internal/models"
)

func (s *Server) handleLatestPrices(w http.ResponseWriter, r *http.Request) {
	var metals []string
	if v := r.URL.Query().Get("metals"); v != "" {
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				metals = append(metals, m)
			}
		}
	}

	prices, err := s.prices.Latest(r.Context(), metals)
	if err != nil {
		writeStoreError(w, err, "failed to fetch latest prices")
		return
	}
	if prices == nil {
		prices = []models.MetalPrice{}
	}
	writeJSON(w, http.StatusOK, prices)
}

// parseWindow reads ?start= and ?end= as RFC3339 or YYYY-MM-DD.
// Defaults to the trailing 24 hours ending now.
func parseWindow(r *http.Request) (start, end time.Time, ok bool) {
	end = time.Now()
	start = end.Add(-24 * time.Hour)

	parse := func(v string) (time.Time, bool) {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	if v := r.URL.Query().Get("start"); v != "" {
		t, valid := parse(v)
		if !valid {
			return start, end, false
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, valid := parse(v)
		if !valid {
			return start, end, false
		}
		end = t
	}
	return start, end, true
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	metal := r.PathValue("metal")

	start, end, ok := parseWindow(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid start/end, expected RFC3339 or YYYY-MM-DD")
		return
	}

	prices, err := s.prices.Range(r.Context(), metal, start, end)
	if err != nil {
		writeStoreError(w, err, "failed to fetch price history")
		return
	}
	if prices == nil {
		prices = []models.MetalPrice{}
	}
	writeJSON(w, http.StatusOK, prices)
}

func (s *Server) handlePriceStats(w http.ResponseWriter, r *http.Request) {
	metal := r.PathValue("metal")
	days := parseDays(r, 30)

	stats, err := s.prices.Statistics(r.Context(), metal, days)
	if err != nil {
		writeStoreError(w, err, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
