package primaryserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notnil/chess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/game"
	"github.com/jacokyle01/chess-lab/humanize"
	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/review"
	"github.com/jacokyle01/chess-lab/rules"
)

// fakeEngine plays the first legal move of every position it is given.
type fakeEngine struct {
	mu   sync.Mutex
	elo  int
	fail error
	gate chan struct{}
}

func (f *fakeEngine) Analyze(ctx context.Context, req models.EngineRequest) (models.RequestOutcome, error) {
	f.mu.Lock()
	fail, gate := f.fail, f.gate
	f.mu.Unlock()
	if fail != nil {
		return models.RequestOutcome{}, fail
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.RequestOutcome{}, ctx.Err()
		}
	}

	fen, err := chess.FEN(req.FEN)
	if err != nil {
		return models.RequestOutcome{}, err
	}
	g := chess.NewGame(fen)
	out := models.RequestOutcome{FEN: req.FEN, Status: models.StatusComplete}
	if moves := g.ValidMoves(); len(moves) > 0 {
		out.Lines = []models.CandidateLine{{
			Rank:  1,
			Move:  chess.UCINotation{}.Encode(g.Position(), moves[0]),
			Score: models.Centipawns(0),
		}}
	}
	return out, nil
}

func (f *fakeEngine) WaitIdle(ctx context.Context) error { return ctx.Err() }
func (f *fakeEngine) NewGame() error                     { return nil }
func (f *fakeEngine) Ready() bool                        { return true }
func (f *fakeEngine) Busy() bool                         { return false }

func (f *fakeEngine) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *fakeEngine) Configure(elo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elo = elo
	return f.fail
}

// singleFlightEngine rejects overlapping requests the way the engine
// session does. The first request blocks until hold is closed.
type singleFlightEngine struct {
	*fakeEngine

	mu      sync.Mutex
	busy    bool
	idle    chan struct{}
	hold    chan struct{}
	entered chan struct{}
}

func newSingleFlightEngine() *singleFlightEngine {
	return &singleFlightEngine{
		fakeEngine: &fakeEngine{},
		hold:       make(chan struct{}),
		entered:    make(chan struct{}, 1),
	}
}

func (e *singleFlightEngine) Analyze(ctx context.Context, req models.EngineRequest) (models.RequestOutcome, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return models.RequestOutcome{FEN: req.FEN, Status: models.StatusBusy}, nil
	}
	e.busy = true
	e.idle = make(chan struct{})
	hold := e.hold
	e.hold = nil
	e.mu.Unlock()

	if hold != nil {
		e.entered <- struct{}{}
		<-hold
	}
	out, err := e.fakeEngine.Analyze(ctx, req)

	e.mu.Lock()
	e.busy = false
	close(e.idle)
	e.mu.Unlock()
	return out, err
}

func (e *singleFlightEngine) WaitIdle(ctx context.Context) error {
	e.mu.Lock()
	if !e.busy {
		e.mu.Unlock()
		return nil
	}
	idle := e.idle
	e.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *singleFlightEngine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

func newTestServer(t *testing.T, eng Engine) *Server {
	t.Helper()
	g, err := rules.New("")
	require.NoError(t, err)

	hub := NewHub()
	an, ok := eng.(game.Analyzer)
	require.True(t, ok)
	ctrl := game.NewController(g, hub, an, humanize.New(engine.DefaultSkillRange, 7), game.Config{
		Skill: engine.DefaultSkillRange,
		Elo:   2500,
		Depth: 8,
	})
	srv := NewServer(":0", ctrl, eng, hub, review.Config{Depth: 8, TimeMS: 50})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func waitHistory(t *testing.T, srv *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(srv.game.State().History) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	w := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chesslab_stale_results_total")
}

func TestMoveTriggersEngineReply(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	w := do(t, srv, http.MethodPost, "/api/move", `{"from":"E2","to":"e4"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Move  models.Move   `json:"move"`
		State stateResponse `json:"state"`
	}](t, w)
	assert.Equal(t, "e2e4", resp.Move.UCI)
	assert.Equal(t, "e4", resp.Move.SAN)
	assert.True(t, resp.State.EngineReady)

	waitHistory(t, srv, 2)
	state := decode[stateResponse](t, do(t, srv, http.MethodGet, "/api/state", ""))
	assert.Equal(t, models.White, state.Turn)
	assert.Equal(t, "White to move.", state.Status)
}

func TestMoveErrors(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng)

	w := do(t, srv, http.MethodPost, "/api/move", `{"from":"e2","to":"e5"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/move", `{"from":"e7","to":"e5"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/move", `{"from":"e2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/move", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the engine cannot answer, so white stays on move
	eng.fail = engine.ErrUnavailable
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/new", `{"human_color":"b"}`).Code)
	w = do(t, srv, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestNewGameAsBlackEngineOpens(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	w := do(t, srv, http.MethodPost, "/api/new", `{"human_color":"b"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Black, decode[stateResponse](t, w).Human)
	waitHistory(t, srv, 1)
	assert.Equal(t, models.Black, srv.game.State().Turn)

	w = do(t, srv, http.MethodPost, "/api/new", `{"human_color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewGameWhileEngineThinkingStillOpens(t *testing.T) {
	eng := newSingleFlightEngine()
	srv := newTestServer(t, eng)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`).Code)
	<-eng.entered

	// the new game's request is rejected as busy, the old reply turns stale
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/new", `{"human_color":"b"}`).Code)
	close(eng.hold)

	waitHistory(t, srv, 1)
	state := srv.game.State()
	assert.Equal(t, models.White, state.History[0].Mover)
	assert.Equal(t, models.Black, state.Turn)
}

func TestFlipBoard(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	w := do(t, srv, http.MethodPost, "/api/flip", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Black, decode[stateResponse](t, w).Orientation)

	w = do(t, srv, http.MethodPost, "/api/flip", "")
	assert.Equal(t, models.White, decode[stateResponse](t, w).Orientation)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/new", `{"human_color":"b"}`).Code)
	assert.Equal(t, models.Black, srv.game.State().Orientation)
}

func TestBackgroundAfterShutdown(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.background(func(context.Context) {})
		}()
	}
	require.NoError(t, srv.Shutdown(context.Background()))
	wg.Wait()

	ran := false
	srv.background(func(context.Context) { ran = true })
	srv.wg.Wait()
	assert.False(t, ran)
}

func TestUndoTakesBackFullMove(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/move", `{"from":"d2","to":"d4"}`).Code)
	waitHistory(t, srv, 2)

	w := do(t, srv, http.MethodPost, "/api/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Undone int           `json:"undone"`
		State  stateResponse `json:"state"`
	}](t, w)
	assert.Equal(t, 2, resp.Undone)
	assert.Equal(t, rules.StartFEN, resp.State.FEN)
}

func TestSkillClampedAndForwarded(t *testing.T) {
	eng := &fakeEngine{}
	srv := newTestServer(t, eng)

	w := do(t, srv, http.MethodPost, "/api/skill", `{"elo":9000,"error_bias":0.5}`)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[stateResponse](t, w)
	assert.Equal(t, 2500, state.Elo)
	assert.Equal(t, 0.5, state.ErrorBias)
	assert.Equal(t, 2500, eng.elo)

	w = do(t, srv, http.MethodPost, "/api/skill", `{"elo":800}`)
	require.Equal(t, http.StatusOK, w.Code)
	state = decode[stateResponse](t, w)
	assert.Equal(t, 800, state.Elo)
	assert.Equal(t, 0.5, state.ErrorBias, "omitted bias is kept")

	eng.mu.Lock()
	eng.fail = engine.ErrUnavailable
	eng.mu.Unlock()
	w = do(t, srv, http.MethodPost, "/api/skill", `{"elo":1000}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	state = decode[stateResponse](t, do(t, srv, http.MethodGet, "/api/state", ""))
	assert.Equal(t, engine.ErrUnavailable.Error(), state.EngineError)
}

func TestReviewLiveGame(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/move", `{"from":"e2","to":"e4"}`).Code)
	waitHistory(t, srv, 2)

	w := do(t, srv, http.MethodPost, "/api/review", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id := decode[map[string]string](t, w)["id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		_, ok := srv.reports.Get(id)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	rep := decode[models.ReviewReport](t, do(t, srv, http.MethodGet, "/api/review?id="+id, ""))
	assert.Equal(t, id, rep.ID)
	assert.Equal(t, models.ReviewComplete, rep.State)
	assert.Equal(t, 3, rep.Analyzed)
	assert.Empty(t, rep.Mistakes)

	require.Eventually(t, func() bool {
		return !srv.game.State().Suspended
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReviewFromPGN(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})

	body, err := json.Marshal(reviewRequest{PGN: "1. e4 e5 2. Nf3 Nc6 *"})
	require.NoError(t, err)
	w := do(t, srv, http.MethodPost, "/api/review", string(body))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	id := decode[map[string]string](t, w)["id"]

	require.NoError(t, srv.pipeline.Wait(context.Background()))
	rep := decode[models.ReviewReport](t, do(t, srv, http.MethodGet, "/api/review", ""))
	assert.Equal(t, id, rep.ID)
	require.Len(t, rep.Plies, 5)
	assert.Equal(t, "Nc6", rep.Plies[4].SAN)

	w = do(t, srv, http.MethodPost, "/api/review", `{"pgn":"1. e4 e4 *"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReviewCancel(t *testing.T) {
	eng := &fakeEngine{gate: make(chan struct{})}
	srv := newTestServer(t, eng)

	w := do(t, srv, http.MethodPost, "/api/review/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/api/review", `{"pgn":"1. d4 d5 *"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode[map[string]string](t, w)["id"]
	assert.True(t, srv.game.State().Suspended)

	w = do(t, srv, http.MethodPost, "/api/review/cancel", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NoError(t, srv.pipeline.Wait(context.Background()))

	rep := decode[models.ReviewReport](t, do(t, srv, http.MethodGet, "/api/review?id="+id, ""))
	assert.Equal(t, models.ReviewCancelled, rep.State)
	require.Eventually(t, func() bool {
		return !srv.game.State().Suspended
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReviewNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/review", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/review?id=nope", "").Code)
}

func TestReportStoreEvictsOldest(t *testing.T) {
	store := NewReportStore()
	for i := 0; i <= maxReports; i++ {
		store.Put(models.ReviewReport{ID: string(rune('A' + i))})
	}
	assert.Equal(t, maxReports, store.Len())
	_, ok := store.Get("A")
	assert.False(t, ok)
	_, ok = store.Get(string(rune('A' + maxReports)))
	assert.True(t, ok)
}

func TestWebSocketPushesBoardUpdates(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, MsgState, first.Type)
	require.Eventually(t, func() bool { return srv.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/move", "application/json", bytes.NewBufferString(`{"from":"e2","to":"e4"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the human move sets the position, the reply animates
	var seen []string
	for !contains(seen, MsgMove) {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		seen = append(seen, msg.Type)
	}
	assert.Equal(t, MsgPosition, seen[0])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
