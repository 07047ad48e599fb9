package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status        string                    `json:"status"`
	Service       string                    `json:"service"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	Databases     map[string]DatabaseHealth `json:"databases"`
	Store         StoreHealth               `json:"store"`
	System        SystemHealth              `json:"system"`
}

// DatabaseHealth reports one local database
type DatabaseHealth struct {
	Status    string `json:"status"`
	Profile   string `json:"profile"`
	SizeBytes int64  `json:"size_bytes"`
}

// StoreHealth reports the analytics store's progress
type StoreHealth struct {
	Status      string `json:"status"`
	LatestCycle uint64 `json:"latest_cycle"`
}

// SystemHealth reports host resource usage
type SystemHealth struct {
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        "healthy",
		Service:       "trading-analyzer",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Databases:     make(map[string]DatabaseHealth),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	for _, db := range s.container.Databases() {
		report := DatabaseHealth{
			Status:    "ok",
			Profile:   string(db.Profile()),
			SizeBytes: db.SizeBytes(),
		}
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Str("path", db.Path()).Msg("Database health check failed")
			report.Status = err.Error()
			response.Status = "degraded"
		}
		response.Databases[db.Name()] = report
	}

	if store := s.container.Store; store != nil {
		response.Store = StoreHealth{
			Status:      string(store.Status()),
			LatestCycle: store.LatestCycle(),
		}
	}

	cpuPercent, ramPercent := s.getSystemStats()
	response.System = SystemHealth{CPUPercent: cpuPercent, RAMPercent: ramPercent}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

// getSystemStats samples CPU over 100ms and reads memory usage
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
