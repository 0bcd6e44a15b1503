package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CheckResult is the outcome of one named readiness probe.
type CheckResult struct {
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// check is a named probe against one server dependency.
type check struct {
	name  string
	probe func(ctx context.Context) error
}

func (c check) run(ctx context.Context) CheckResult {
	result := CheckResult{Healthy: true, CheckedAt: time.Now().UTC()}
	if err := c.probe(ctx); err != nil {
		result.Healthy = false
		result.Message = err.Error()
	}
	return result
}

type healthReport struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// healthHandler reports liveness: the process is up and serving.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthReport{Status: "ok"})
}

// readyHandler runs every dependency probe and reports 503 until all
// pass.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := healthReport{Status: "ok", Checks: make(map[string]CheckResult, len(s.checks))}
	status := http.StatusOK
	for _, c := range s.checks {
		result := c.run(ctx)
		report.Checks[c.name] = result
		if !result.Healthy {
			report.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
