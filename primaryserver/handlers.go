package primaryserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/game"
	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/review"
	"github.com/jacokyle01/chess-lab/rules"
)

type stateResponse struct {
	game.State
	EngineReady bool           `json:"engine_ready"`
	EngineBusy  bool           `json:"engine_busy"`
	EngineError string         `json:"engine_error,omitempty"`
	Review      *reviewSummary `json:"review,omitempty"`
}

type reviewSummary struct {
	ID       string             `json:"id"`
	State    models.ReviewState `json:"state"`
	Analyzed int                `json:"analyzed"`
	Total    int                `json:"total"`
}

type newGameRequest struct {
	HumanColor models.Color `json:"human_color"`
}

type moveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion"`
}

type skillRequest struct {
	Elo       int      `json:"elo"`
	ErrorBias *float64 `json:"error_bias"`
}

type reviewRequest struct {
	PGN string `json:"pgn"` // reviews this game instead of the live one
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.HumanColor {
	case "":
		req.HumanColor = models.White
	case models.White, models.Black:
	default:
		writeError(w, http.StatusBadRequest, "human_color must be \"w\" or \"b\"")
		return
	}

	if err := s.game.NewGame(req.HumanColor); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.background(s.engineReply)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	m, err := s.game.HumanMove(strings.ToLower(req.From), strings.ToLower(req.To), strings.ToLower(req.Promotion))
	switch {
	case errors.Is(err, rules.ErrIllegalMove), errors.Is(err, game.ErrNotYourPiece):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, game.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.background(s.engineReply)
	writeJSON(w, http.StatusOK, map[string]any{"move": m, "state": s.snapshot()})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	n := s.game.Undo()
	writeJSON(w, http.StatusOK, map[string]any{"undone": n, "state": s.snapshot()})
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	s.game.Flip()
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	var req skillRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cur := s.game.State()
	if req.Elo == 0 {
		req.Elo = cur.Elo
	}
	bias := cur.ErrorBias
	if req.ErrorBias != nil {
		bias = *req.ErrorBias
	}

	if err := s.game.SetSkill(req.Elo, bias); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnavailable) || errors.Is(err, engine.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		initial string
		played  []models.Move
	)
	if req.PGN != "" {
		g, err := rules.FromPGN(strings.NewReader(req.PGN))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		initial, played = g.InitialFEN(), g.History()
	} else {
		initial, played = s.game.Record()
	}

	moves := make([]string, len(played))
	for i, m := range played {
		moves[i] = m.UCI
	}

	id, err := s.startReview(initial, moves)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleCancelReview(w http.ResponseWriter, r *http.Request) {
	if !s.pipeline.Running() {
		writeError(w, http.StatusConflict, "no review is running")
		return
	}
	s.pipeline.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	cur := s.pipeline.Report()
	if cur.ID != "" && (id == "" || id == cur.ID) {
		writeJSON(w, http.StatusOK, cur)
		return
	}
	if id == "" {
		writeError(w, http.StatusNotFound, review.ErrNoReview.Error())
		return
	}
	rep, ok := s.reports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown review "+id)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// startReview suspends live play and reviews the given game. Live play
// resumes when the review finishes, unless another review replaced it.
func (s *Server) startReview(initial string, moves []string) (string, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.reviewMu.Lock()
	prev := s.reviewID
	s.reviewID = ""
	s.reviewMu.Unlock()

	s.game.Suspend()
	id, err := s.pipeline.Start(s.ctx, initial, moves)

	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()
	if err != nil {
		// the previous review, if any, was left running
		s.reviewID = prev
		if prev == "" || s.finishedID == prev {
			s.reviewID = ""
			s.resumeLocked()
		}
		return "", err
	}
	if s.finishedID == id {
		s.resumeLocked()
	} else {
		s.reviewID = id
	}
	return id, nil
}

// onProgress pushes review progress and archives finished reports.
func (s *Server) onProgress(p review.Progress) {
	s.hub.Publish(p)
	if p.Report == nil {
		return
	}
	s.reports.Put(*p.Report)

	s.reviewMu.Lock()
	defer s.reviewMu.Unlock()
	s.finishedID = p.ID
	if s.reviewID == p.ID {
		s.reviewID = ""
		s.resumeLocked()
	}
}

func (s *Server) resumeLocked() {
	s.game.Resume()
	s.background(s.engineReply)
}

// maxReplyAttempts bounds fresh requests after busy, stale or empty outcomes.
const maxReplyAttempts = 5

// engineReply lets the engine move if it is on turn. A busy engine or a
// discarded stale result leaves the engine on move, so it asks again for
// the current position once the session is idle.
func (s *Server) engineReply(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		m, played, err := s.game.EngineTurn(ctx)
		switch {
		case errors.Is(err, game.ErrSuspended), errors.Is(err, context.Canceled):
			return
		case err != nil:
			log.Printf("[game] engine reply failed: %v", err)
			return
		case played:
			log.Printf("[game] engine played %s (%s)", m.SAN, m.UCI)
			return
		}

		if !s.game.NeedsReply() {
			return
		}
		if attempt == maxReplyAttempts {
			log.Printf("[game] engine gave no move after %d attempts", attempt)
			return
		}
		if err := s.engine.WaitIdle(ctx); err != nil {
			return
		}
	}
}

func (s *Server) snapshot() any {
	resp := stateResponse{
		State:       s.game.State(),
		EngineReady: s.engine.Ready(),
		EngineBusy:  s.engine.Busy(),
	}
	if err := s.engine.Err(); err != nil {
		resp.EngineError = err.Error()
	}
	if rep := s.pipeline.Report(); rep.ID != "" {
		resp.Review = &reviewSummary{
			ID:       rep.ID,
			State:    rep.State,
			Analyzed: rep.Analyzed,
			Total:    len(rep.Plies),
		}
	}
	return resp
}
