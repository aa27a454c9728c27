package observability_test

import (
	"InsMarket/internal/observability"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestNewMetrics_PrivateRegistries(t *testing.T) {
	// two metric sets must not collide when each has its own registry
	a := observability.NewMetrics(prometheus.NewRegistry())
	b := observability.NewMetrics(prometheus.NewRegistry())

	a.PoliciesBound.Inc()
	a.QuotesDeclined.WithLabelValues("line_limit").Add(2)

	if got := testutil.ToFloat64(a.PoliciesBound); got != 1 {
		t.Errorf("got %v bound, want 1", got)
	}
	if got := testutil.ToFloat64(b.PoliciesBound); got != 0 {
		t.Errorf("second set: got %v bound, want 0", got)
	}
	if got := testutil.ToFloat64(a.QuotesDeclined.WithLabelValues("line_limit")); got != 2 {
		t.Errorf("got %v declines, want 2", got)
	}
}

func TestNewMetrics_RegistersEveryFamily(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.EventsDispatched.WithLabelValues("PolicyBound").Inc()
	m.PersistErrors.WithLabelValues("tx_commit").Inc()

	n, err := testutil.GatherAndCount(reg,
		"insmarket_events_dispatched_total",
		"insmarket_persist_errors_total",
		"insmarket_log_length",
	)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 3 {
		t.Errorf("got %d series, want 3", n)
	}
}

func TestHealthChecker(t *testing.T) {
	h := observability.NewHealthChecker()

	rec := httptest.NewRecorder()
	h.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness: got %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness before ready: got %d, want 503", rec.Code)
	}

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readiness: got %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("got status %v, want ready", body["status"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := observability.ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}
