package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mpgame/mp-server/pkg/commsutil"
	"github.com/mpgame/mp-server/pkg/rpc"
)

const httpLogPrefix = "server:http"

// Handler returns the HTTP surface: RPC, WebSocket, health, readiness and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.handleHome)
	return mux
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	applyCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.inflight.acquire() {
		writeJSON(w, http.StatusServiceUnavailable, unavailable(""))
		return
	}
	defer s.inflight.release()
	if !s.limiter.allow(clientKey(r), time.Now()) {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, rpc.NewErrorResponse("", rpc.CodeRateLimited, "rate limit exceeded"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req rpc.Request
	if err := commsutil.DecodePayload(body, &req); err != nil {
		slog.Debug(fmt.Sprintf("%s - parse error: %v", httpLogPrefix, err))
		writeJSON(w, http.StatusOK, rpc.NewErrorResponse("", rpc.CodeParseError, "parse error"))
		return
	}

	started := time.Now()
	resp := s.dispatch(r.Context(), &req)
	attrs := []any{"method", req.Method, "id", req.ID, "latency_ms", time.Since(started).Milliseconds()}
	if resp.IsError() {
		slog.Debug(fmt.Sprintf("%s - rpc failed", httpLogPrefix), append(attrs, "code", resp.Error.Code)...)
	} else {
		slog.Debug(fmt.Sprintf("%s - rpc served", httpLogPrefix), attrs...)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()

	health := s.game.Health(ctx)
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "MP Game Server %s\n", Version)
}

func applyCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Max-Age", "600")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to write response: %v", httpLogPrefix, err))
	}
}
