// Package game runs live play between a human and the engine.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/metrics"
	"github.com/jacokyle01/chess-lab/models"
)

var (
	ErrGameOver     = errors.New("game is over")
	ErrNotYourTurn  = errors.New("not the human's turn")
	ErrNotYourPiece = errors.New("no piece of the human's color on that square")
	ErrSuspended    = errors.New("live play is suspended")
)

// Config holds the live-play settings.
type Config struct {
	Skill     engine.SkillRange
	Elo       int
	ErrorBias float64
	Depth     int // early-resolution depth for engine replies
}

// State is a snapshot of the live game.
type State struct {
	FEN         string        `json:"fen"`
	Turn        models.Color  `json:"turn"`
	Human       models.Color  `json:"human"`
	Orientation models.Color  `json:"orientation"`
	Status      string        `json:"status"`
	History     []models.Move `json:"history"`
	PGN         string        `json:"pgn"`
	Elo         int           `json:"elo"`
	ErrorBias   float64       `json:"error_bias"`
	InCheck     bool          `json:"in_check"`
	GameOver    bool          `json:"game_over"`
	Suspended   bool          `json:"suspended"`
}

// Controller owns the live game and coordinates engine replies.
type Controller struct {
	rules   Rules
	board   Renderer
	engine  Analyzer
	chooser Chooser
	skill   engine.SkillRange
	depth   int

	mu        sync.Mutex
	guard     Guard
	human     models.Color
	orient    models.Color
	elo       int
	bias      float64
	suspended bool
}

// NewController wires live play. The human starts as white.
func NewController(rules Rules, board Renderer, an Analyzer, chooser Chooser, cfg Config) *Controller {
	if board == nil {
		board = NopRenderer{}
	}
	return &Controller{
		rules:   rules,
		board:   board,
		engine:  an,
		chooser: chooser,
		skill:   cfg.Skill,
		depth:   cfg.Depth,
		human:   models.White,
		orient:  models.White,
		elo:     cfg.Skill.Clamp(cfg.Elo),
		bias:    cfg.ErrorBias,
	}
}

// NewGame starts over with the human playing the given side.
func (c *Controller) NewGame(human models.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rules.Reset(""); err != nil {
		return err
	}
	c.guard.Touch()
	c.human = human
	c.orient = human
	c.board.SetOrientation(human)
	c.board.SetPosition(c.rules.FEN(), true)
	if err := c.engine.NewGame(); err != nil {
		log.Printf("[game] engine new game: %v", err)
	}
	return nil
}

// HumanMove plays the human's move.
func (c *Controller) HumanMove(from, to, promo string) (models.Move, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rules.IsGameOver() {
		return models.Move{}, ErrGameOver
	}
	if c.rules.Turn() != c.human {
		return models.Move{}, ErrNotYourTurn
	}
	if piece, ok := c.rules.PieceAt(from); !ok || piece[:1] != string(c.human) {
		return models.Move{}, ErrNotYourPiece
	}
	m, err := c.rules.Apply(from, to, promo)
	if err != nil {
		return models.Move{}, err
	}
	c.guard.Touch()
	c.board.SetPosition(c.rules.FEN(), false)
	return m, nil
}

// EngineTurn asks the engine for a reply and plays it. It reports false
// when nothing was played: not the engine's turn, game over, engine busy,
// no move, or the position changed while the engine was thinking. In the
// last two cases NeedsReply tells whether a fresh request is due.
func (c *Controller) EngineTurn(ctx context.Context) (models.Move, bool, error) {
	c.mu.Lock()
	if c.suspended {
		c.mu.Unlock()
		return models.Move{}, false, ErrSuspended
	}
	if c.rules.IsGameOver() || c.rules.Turn() == c.human {
		c.mu.Unlock()
		return models.Move{}, false, nil
	}
	fen := c.rules.FEN()
	fp := c.guard.Capture(fen)
	elo, bias := c.elo, c.bias
	c.mu.Unlock()

	out, err := c.engine.Analyze(ctx, models.EngineRequest{
		FEN:     fen,
		TimeMS:  c.skill.MoveTime(elo),
		MultiPV: c.skill.Options(elo).MultiPV,
		Depth:   c.depth,
	})
	if err != nil {
		return models.Move{}, false, fmt.Errorf("engine reply: %w", err)
	}
	if out.Busy() {
		return models.Move{}, false, nil
	}
	uci, ok := c.chooser.Choose(out.Lines, elo, bias)
	if !ok {
		return models.Move{}, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.guard.Fresh(fp, c.rules.FEN()) {
		metrics.StaleResults.Inc()
		log.Printf("[game] discarding stale engine move %s", uci)
		return models.Move{}, false, nil
	}
	m, err := c.rules.ApplyUCI(uci)
	if err != nil {
		return models.Move{}, false, err
	}
	c.guard.Touch()
	c.board.AnimateMove(m.From(), m.To())
	c.board.SetPosition(c.rules.FEN(), true)
	return m, true, nil
}

// Undo takes back the last ply, and one more if the human would otherwise
// not be on move. It returns the number of plies removed.
func (c *Controller) Undo() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	if c.rules.Undo() {
		n++
		if c.rules.Turn() != c.human && c.rules.Undo() {
			n++
		}
	}
	if n > 0 {
		c.guard.Touch()
		c.board.SetPosition(c.rules.FEN(), true)
	}
	return n
}

// SetSkill changes the engine strength and error bias.
func (c *Controller) SetSkill(elo int, bias float64) error {
	elo = c.skill.Clamp(elo)
	bias = max(-1, min(1, bias))

	c.mu.Lock()
	c.elo, c.bias = elo, bias
	c.mu.Unlock()

	return c.engine.Configure(elo)
}

// Flip turns the board around and returns the new bottom side.
func (c *Controller) Flip() models.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orient = c.orient.Other()
	c.board.SetOrientation(c.orient)
	return c.orient
}

// NeedsReply reports whether the engine is on move and allowed to play.
func (c *Controller) NeedsReply() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.suspended && !c.rules.IsGameOver() && c.rules.Turn() != c.human
}

// Suspend blocks engine replies, e.g. while a review owns the engine.
func (c *Controller) Suspend() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
}

// Resume re-enables engine replies.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
}

// Record returns the initial position and the moves played, for review.
func (c *Controller) Record() (string, []models.Move) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules.InitialFEN(), c.rules.History()
}

// State returns a snapshot of the game.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		FEN:         c.rules.FEN(),
		Turn:        c.rules.Turn(),
		Human:       c.human,
		Orientation: c.orient,
		Status:      c.statusLocked(),
		History:     c.rules.History(),
		PGN:         c.rules.PGN(),
		Elo:         c.elo,
		ErrorBias:   c.bias,
		InCheck:     c.rules.InCheck(),
		GameOver:    c.rules.IsGameOver(),
		Suspended:   c.suspended,
	}
}

func (c *Controller) statusLocked() string {
	turn := "White"
	if c.rules.Turn() == models.Black {
		turn = "Black"
	}
	switch {
	case c.rules.IsCheckmate():
		return fmt.Sprintf("Checkmate. %s is mated.", turn)
	case c.rules.IsDraw():
		return "Draw."
	case c.rules.IsGameOver():
		return "Game over."
	}
	status := turn + " to move."
	if c.rules.InCheck() {
		status += " (Check)"
	}
	return status
}
