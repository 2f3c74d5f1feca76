package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brensch/snekspace/heuristic"
)

const serverID = "battlesnake/github/snekspace"

type ServerConfig struct {
	Info InfoResponse
	// MoveTimeout is used when a request carries no game.timeout.
	MoveTimeout time.Duration
	// LatencyBuffer is kept back from the timeout for the network.
	LatencyBuffer time.Duration
	// Spectate, when set, is served on /ws.
	Spectate http.Handler
}

// Server adapts the Battlesnake HTTP API to a heuristic.Engine.
type Server struct {
	engine *heuristic.Engine
	cfg    ServerConfig
	logger *slog.Logger
}

func NewServer(engine *heuristic.Engine, cfg ServerConfig, logger *slog.Logger) *Server {
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = 500 * time.Millisecond
	}
	if cfg.LatencyBuffer < 0 {
		cfg.LatencyBuffer = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, cfg: cfg, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /move", s.handleMove)
	mux.HandleFunc("POST /end", s.handleEnd)
	if s.cfg.Spectate != nil {
		mux.Handle("GET /ws", s.cfg.Spectate)
	}
	return withServerID(mux)
}

func withServerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.cfg.Info)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.engine.Start(r.Context(), toRequest(req))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.computeTime(req.Game.Timeout))
	defer cancel()

	d := s.engine.Move(ctx, toRequest(req))
	writeJSON(w, MoveResponse{
		Move:  d.Move.String(),
		Shout: fmt.Sprintf("%s %d", d.Policy, d.Scores[d.Move]),
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	s.engine.End(r.Context(), toRequest(req))
	w.WriteHeader(http.StatusOK)
}

// computeTime is the request timeout minus the latency buffer, never less
// than 50ms.
func (s *Server) computeTime(timeoutMS int) time.Duration {
	timeout := s.cfg.MoveTimeout
	if timeoutMS > 0 {
		timeout = time.Duration(timeoutMS) * time.Millisecond
	}
	return max(timeout-s.cfg.LatencyBuffer, 50*time.Millisecond)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (GameRequest, bool) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.WarnContext(r.Context(), "bad request", "path", r.URL.Path, "error", err)
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return GameRequest{}, false
	}
	return req, true
}

func toRequest(req GameRequest) heuristic.Request {
	return heuristic.Request{
		GameID: req.Game.ID,
		Turn:   req.Turn,
		Board:  toBoard(req.Board),
		You:    toSnake(req.You),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
