package server

import (
	"InsMarket/internal/event"
	"InsMarket/internal/observability"
	"InsMarket/internal/persistence"
	"InsMarket/internal/query"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HTTPServer serves stored runs as JSON next to the metrics and health
// endpoints.
type HTTPServer struct {
	httpServer *http.Server
	addr       string
	logger     zerolog.Logger
}

// ServerDeps holds all dependencies needed by the handlers.
type ServerDeps struct {
	QueryService  *query.QueryService
	HealthChecker *observability.HealthChecker
	Registry      *prometheus.Registry
	Logger        zerolog.Logger
}

// NewHTTPServer creates the server with every route registered.
func NewHTTPServer(addr string, deps *ServerDeps) (*HTTPServer, error) {
	handler, err := NewHandler(deps)
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr:   addr,
		logger: deps.Logger,
	}, nil
}

// NewHandler builds the route table. The run routes live on a gateway mux
// mounted under "/", beside the health and metrics endpoints.
//
//	GET /runs                              newest runs (?limit=)
//	GET /runs/{run}/integrity              fingerprint and capital checks
//	GET /runs/{run}/accounts/{account}     ledger balance of an account path
//	GET /runs/{run}/insurers/{insurer}     capital split by journal type
//	GET /runs/{run}/journals               journal history (?account= &after= &limit=)
func NewHandler(deps *ServerDeps) (http.Handler, error) {
	h := &handlers{qs: deps.QueryService}

	mux := runtime.NewServeMux()
	routes := []struct {
		pattern string
		handler runtime.HandlerFunc
	}{
		{"/runs", h.listRuns},
		{"/runs/{run}/integrity", h.integrity},
		{"/runs/{run}/accounts/{account}", h.balance},
		{"/runs/{run}/insurers/{insurer}", h.insurer},
		{"/runs/{run}/journals", h.journals},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(http.MethodGet, rt.pattern, rt.handler); err != nil {
			return nil, fmt.Errorf("register %s: %w", rt.pattern, err)
		}
	}

	httpMux := http.NewServeMux()
	if deps.HealthChecker != nil {
		httpMux.HandleFunc("GET /healthz", deps.HealthChecker.LivenessHandler)
		httpMux.HandleFunc("GET /readyz", deps.HealthChecker.ReadinessHandler)
	}
	if deps.Registry != nil {
		httpMux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))
	}
	httpMux.Handle("/", mux)
	return httpMux, nil
}

// Start serves until ctx is cancelled (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handlers struct {
	qs *query.QueryService
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit, err := intParam(r, "limit", 20, 1, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	runs, err := h.qs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handlers) integrity(w http.ResponseWriter, r *http.Request, params map[string]string) {
	runID, ok := runParam(w, params)
	if !ok {
		return
	}
	report, err := h.qs.VerifyIntegrity(r.Context(), runID)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) balance(w http.ResponseWriter, r *http.Request, params map[string]string) {
	runID, ok := runParam(w, params)
	if !ok {
		return
	}
	resp, err := h.qs.GetBalance(r.Context(), runID, params["account"])
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) insurer(w http.ResponseWriter, r *http.Request, params map[string]string) {
	runID, ok := runParam(w, params)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(params["insurer"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid insurer id: %w", err))
		return
	}
	resp, err := h.qs.GetInsurer(r.Context(), runID, event.InsurerID(id))
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) journals(w http.ResponseWriter, r *http.Request, params map[string]string) {
	runID, ok := runParam(w, params)
	if !ok {
		return
	}
	pageSize, err := intParam(r, "limit", 100, 1, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var afterSeq *int64
	if v := r.URL.Query().Get("after"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after: %w", err))
			return
		}
		afterSeq = &seq
	}

	entries, err := h.qs.GetJournalHistory(r.Context(), runID, r.URL.Query().Get("account"), pageSize, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- helpers ---

func runParam(w http.ResponseWriter, params map[string]string) (uuid.UUID, bool) {
	id, err := uuid.Parse(params["run"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid run id: %w", err))
		return uuid.Nil, false
	}
	return id, true
}

// intParam reads an optional query integer, clamped to [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return min(max(n, lo), hi), nil
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
