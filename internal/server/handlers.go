package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/chainwatch/internal/domain"
	"github.com/aristath/chainwatch/internal/store"
)

var errNotFound = errors.New("not found")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := s.systemStats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "chainwatch",
		"cpu_percent":    cpuPct,
		"memory_percent": memPct,
	})
}

// systemStats samples host CPU and memory usage over a short window so
// /health stays fast enough for a liveness probe.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read cpu percent")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read memory stats")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{
		UnacknowledgedOnly: r.URL.Query().Get("unacknowledged") == "true",
		SeverityBand:       domain.SeverityBand(r.URL.Query().Get("band")),
		Limit:              50,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		if since, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = since
		}
	}

	alerts, err := s.store.Alerts.List(opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert, err := s.store.Alerts.Get(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if alert == nil {
		s.writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		By string `json:"by"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if body.By == "" {
		body.By = "unknown"
	}

	if err := s.store.Alerts.Acknowledge(id, body.By); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.store.Suppliers.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suppliers)
}

// supplierHistoryLimit caps how many past risk events accompany a
// supplier lookup; the full history is available through risk events
// directly if an operator needs more.
const supplierHistoryLimit = 20

func (s *Server) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	supplier, err := s.store.Suppliers.Get(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if supplier == nil {
		s.writeError(w, http.StatusNotFound, errNotFound)
		return
	}

	history, err := s.store.RiskEvents.ListForSupplier(id, supplierHistoryLimit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"supplier":     supplier,
		"risk_history": history,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Alerts.CountByBand()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	suppliers, err := s.store.Suppliers.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	byStatus := make(map[domain.SupplierStatus]int)
	byBand := make(map[domain.SeverityBand]int)
	for _, sup := range suppliers {
		byStatus[sup.Status]++
		byBand[domain.SeverityBandFor(sup.RiskScoreCurrent)]++
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"open_alerts_by_band":    counts,
		"supplier_count":         len(suppliers),
		"suppliers_by_status":    byStatus,
		"suppliers_by_risk_band": byBand,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
