package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker backs /healthz and /readyz. A process is live as soon as it
// serves; it is ready once its run has finished or its store is open.
type HealthChecker struct {
	ready   atomic.Bool
	started time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }

func (h *HealthChecker) IsReady() bool { return h.ready.Load() }

type healthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
}

// LivenessHandler always answers 200 with the process uptime.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, healthStatus{
		Status: "alive",
		Uptime: time.Since(h.started).Round(time.Millisecond).String(),
	})
}

// ReadinessHandler answers 200 after SetReady(true) and 503 before.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if !h.IsReady() {
		writeStatus(w, http.StatusServiceUnavailable, healthStatus{Status: "not_ready"})
		return
	}
	writeStatus(w, http.StatusOK, healthStatus{Status: "ready"})
}

func writeStatus(w http.ResponseWriter, code int, body healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
