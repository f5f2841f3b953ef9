// Package primaryserver exposes live play and game review over HTTP and
// pushes board updates to websocket clients.
package primaryserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacokyle01/chess-lab/game"
	"github.com/jacokyle01/chess-lab/review"
	"github.com/jacokyle01/chess-lab/rules"
)

// Engine is the engine session as used by the server: health for the
// state endpoint and analysis for reviews.
type Engine interface {
	review.Analyzer
	Ready() bool
	Busy() bool
	Err() error
}

// Server ties the live game, the review pipeline and the push channel
// together.
type Server struct {
	addr     string
	mux      *http.ServeMux
	server   *http.Server
	game     *game.Controller
	pipeline *review.Pipeline
	engine   Engine
	hub      *Hub
	reports  *ReportStore

	startMu    sync.Mutex // serializes review starts
	reviewMu   sync.Mutex
	reviewID   string // review holding live play suspended
	finishedID string // last review to finish

	// ctx outlives individual requests; engine replies and reviews run on it.
	ctx    context.Context
	cancel context.CancelFunc

	bgMu    sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates the server. hub must be the controller's renderer.
func NewServer(addr string, ctrl *game.Controller, eng Engine, hub *Hub, reviewCfg review.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:    addr,
		mux:     http.NewServeMux(),
		game:    ctrl,
		engine:  eng,
		hub:     hub,
		reports: NewReportStore(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.pipeline = review.New(eng, rules.Replay{}, reviewCfg, s.onProgress)
	s.registerRoutes()
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/new", s.handleNewGame)
	s.mux.HandleFunc("POST /api/move", s.handleMove)
	s.mux.HandleFunc("POST /api/undo", s.handleUndo)
	s.mux.HandleFunc("POST /api/flip", s.handleFlip)
	s.mux.HandleFunc("POST /api/skill", s.handleSkill)
	s.mux.HandleFunc("POST /api/review", s.handleStartReview)
	s.mux.HandleFunc("POST /api/review/cancel", s.handleCancelReview)
	s.mux.HandleFunc("GET /api/review", s.handleGetReview)
	s.mux.HandleFunc("GET /ws", s.hub.ServeWS(s.snapshot))
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// StartServer listens until Shutdown is called.
func (s *Server) StartServer() error {
	log.Printf("Starting server on %s", s.addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels background work and waits
// for it to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.bgMu.Lock()
	s.closing = true
	s.bgMu.Unlock()

	s.cancel()
	s.pipeline.Cancel()
	s.wg.Wait()
	s.hub.Close()
	return err
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// background runs fn on the server context. It is a no-op once Shutdown
// has begun.
func (s *Server) background(fn func(ctx context.Context)) {
	s.bgMu.Lock()
	defer s.bgMu.Unlock()
	if s.closing {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
