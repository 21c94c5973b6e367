package api

import "net/http"

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	metal := r.PathValue("metal")
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	summary, err := s.summaries.Get(r.Context(), date, metal)
	if err != nil {
		writeStoreError(w, err, "failed to fetch summary")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "no summary for that date")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleBuildSummary rebuilds the rollup from raw observations. Rebuilding
// an existing (date, metal) overwrites it.
func (s *Server) handleBuildSummary(w http.ResponseWriter, r *http.Request) {
	metal := r.PathValue("metal")
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	summary, err := s.summaries.Build(r.Context(), date, metal)
	if err != nil {
		writeStoreError(w, err, "failed to build summary")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "no observations for that date")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
