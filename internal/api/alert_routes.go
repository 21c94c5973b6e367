package api

import (
	"net/http"

	"github.com/Staysteady/bpipe/internal/models"
)

func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	metal := r.URL.Query().Get("metal")

	alerts, err := s.alerts.Active(r.Context(), metal)
	if err != nil {
		writeStoreError(w, err, "failed to fetch alerts")
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
