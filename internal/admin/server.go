// Package admin provides the status/ops HTTP API for the load balancer.
// Unlike the client TCP data path, this surface is ambient infrastructure
// and may carry its own authentication and rate limiting — the system's
// "no authentication" stance applies only to client sessions.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fliphashlb/internal/config"
	"fliphashlb/internal/middleware"
	"fliphashlb/internal/pool"
)

// backendView is the JSON representation of a backend and its last-known
// metrics blob.
type backendView struct {
	Host    string          `json:"host"`
	Port    uint16          `json:"port"`
	Metrics json.RawMessage `json:"metrics,omitempty"`
}

// Server is the status/ops HTTP server. It is a thin presentation layer
// over *pool.Pool — it holds no state of its own beyond the pool
// reference, startup time, and version string.
type Server struct {
	pool      *pool.Pool
	startTime time.Time
	version   string
	srv       *http.Server
}

// New creates a status/ops Server per cfg. Call Start to begin listening.
func New(p *pool.Pool, cfg config.AdminCfg, startTime time.Time, version string) *Server {
	s := &Server{pool: p, startTime: startTime, version: version}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/backends", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.handleListBackends(w, r)
		case http.MethodPost:
			s.handleAddBackend(w, r)
		case http.MethodDelete:
			s.handleRemoveBackend(w, r)
		default:
			jsonErr(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	var handler http.Handler = mux
	handler = middleware.Logger(func() int { return len(s.pool.Snapshot()) })(handler)
	if cfg.RateLimit.Enabled {
		handler = middleware.RateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)(handler)
	}
	if cfg.Auth.Enabled {
		exclude := cfg.Auth.Exclude
		if len(exclude) == 0 {
			exclude = []string{"/healthz"}
		}
		handler = middleware.JWTAuth(cfg.Auth.Secret, exclude)(handler)
	}

	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening in a background goroutine. It returns immediately.
func (s *Server) Start() {
	go func() {
		slog.Info("admin API listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the admin server within the given context deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the server's middleware-wrapped mux, for tests that want
// to exercise it directly against an httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ── Handlers ────────────────────────────────────────────────────────────────

type statsResponse struct {
	Uptime        string `json:"uptime"`
	Version       string `json:"version"`
	BackendsTotal int    `json:"backends_total"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, statsResponse{
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		Version:       s.version,
		BackendsTotal: len(s.pool.Snapshot()),
	})
}

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	backends := s.pool.Snapshot()
	metrics := s.pool.GetMetrics()

	out := make([]backendView, len(backends))
	for i, b := range backends {
		out[i] = backendView{Host: b.Host, Port: b.Port, Metrics: metrics[b.ID()]}
	}
	jsonOK(w, out)
}

func (s *Server) handleAddBackend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Host string `json:"host"`
		Port uint16 `json:"port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonErr(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.Host == "" || body.Port == 0 {
		jsonErr(w, "host and port are required", http.StatusBadRequest)
		return
	}

	b := pool.Backend{Host: body.Host, Port: body.Port}
	if !s.pool.Add(b) {
		jsonErr(w, "backend already registered", http.StatusConflict)
		return
	}
	slog.Info("admin: backend added", "backend", b.ID())
	jsonOK(w, map[string]string{"status": "added"})
}

func (s *Server) handleRemoveBackend(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonErr(w, "id query parameter is required", http.StatusBadRequest)
		return
	}
	b, err := pool.ParseBackendID(id)
	if err != nil {
		jsonErr(w, "id must be host:port", http.StatusBadRequest)
		return
	}
	s.pool.Remove(b)
	slog.Info("admin: backend removed", "backend", b.ID())
	jsonOK(w, map[string]string{"status": "removed"})
}

// ── helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
