// Package rules implements the chess rules collaborator on top of
// github.com/notnil/chess.
package rules

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/notnil/chess"

	"github.com/jacokyle01/chess-lab/models"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var ErrIllegalMove = errors.New("illegal move")

// Game tracks one game. It is not safe for concurrent use.
type Game struct {
	initial string
	game    *chess.Game
	history []models.Move
}

// New starts a game from fen, or from the initial position when fen is empty.
func New(fen string) (*Game, error) {
	g := &Game{}
	if err := g.Reset(fen); err != nil {
		return nil, err
	}
	return g, nil
}

// FromPGN loads a finished or ongoing game.
func FromPGN(r io.Reader) (*Game, error) {
	opt, err := chess.PGN(r)
	if err != nil {
		return nil, fmt.Errorf("parse pgn: %w", err)
	}
	src := chess.NewGame(opt)

	positions := src.Positions()
	g, err := New(positions[0].String())
	if err != nil {
		return nil, err
	}
	for i, m := range src.Moves() {
		uci := chess.UCINotation{}.Encode(positions[i], m)
		if _, err := g.applyUCI(uci); err != nil {
			return nil, fmt.Errorf("replay ply %d: %w", i+1, err)
		}
	}
	return g, nil
}

// Reset discards the game and starts over from fen.
func (g *Game) Reset(fen string) error {
	if fen == "" {
		fen = StartFEN
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return fmt.Errorf("parse fen: %w", err)
	}
	g.initial = fen
	g.game = chess.NewGame(opt)
	g.history = nil
	return nil
}

// InitialFEN is the position the game started from.
func (g *Game) InitialFEN() string { return g.initial }

// FEN is the current position.
func (g *Game) FEN() string { return g.game.Position().String() }

// Turn is the side to move.
func (g *Game) Turn() models.Color { return color(g.game.Position().Turn()) }

// Apply plays from-to with an optional promotion piece. A pawn reaching the
// last rank without one promotes to a queen.
func (g *Game) Apply(from, to, promo string) (models.Move, error) {
	s := strings.ToLower(from + to + promo)
	mv, err := g.applyUCI(s)
	if err != nil && promo == "" {
		if m, qerr := g.applyUCI(s + "q"); qerr == nil {
			return m, nil
		}
	}
	return mv, err
}

// ApplyUCI plays a coordinate move such as e2e4 or e7e8q.
func (g *Game) ApplyUCI(uci string) (models.Move, error) {
	if len(uci) < 4 {
		return models.Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, uci)
	}
	return g.Apply(uci[:2], uci[2:4], uci[4:])
}

func (g *Game) applyUCI(s string) (models.Move, error) {
	pos := g.game.Position()
	enc := chess.UCINotation{}
	var m *chess.Move
	for _, v := range pos.ValidMoves() {
		if enc.Encode(pos, v) == s {
			m = v
			break
		}
	}
	if m == nil {
		return models.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	san := chess.AlgebraicNotation{}.Encode(pos, m)
	mover := color(pos.Turn())
	if err := g.game.Move(m); err != nil {
		return models.Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	rec := models.Move{UCI: s, SAN: san, Mover: mover, FEN: g.FEN()}
	g.history = append(g.history, rec)
	return rec, nil
}

// Undo takes back the last ply. It reports false when there is none.
func (g *Game) Undo() bool {
	if len(g.history) == 0 {
		return false
	}
	moves := g.history[:len(g.history)-1]
	if err := g.Reset(g.initial); err != nil {
		return false
	}
	for _, m := range moves {
		if _, err := g.applyUCI(m.UCI); err != nil {
			return false
		}
	}
	return true
}

// History returns the plies played so far.
func (g *Game) History() []models.Move {
	return append([]models.Move(nil), g.history...)
}

// InCheck reports whether the side to move is in check.
func (g *Game) InCheck() bool {
	moves := g.game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(chess.Check)
}

// IsCheckmate reports whether the side to move is mated.
func (g *Game) IsCheckmate() bool {
	return g.game.Method() == chess.Checkmate
}

// IsDraw reports a finished draw or one that can be claimed.
func (g *Game) IsDraw() bool {
	if g.game.Outcome() == chess.Draw {
		return true
	}
	for _, m := range g.game.EligibleDraws() {
		if m == chess.ThreefoldRepetition || m == chess.FiftyMoveRule {
			return true
		}
	}
	return false
}

// IsGameOver reports whether no further moves should be played.
func (g *Game) IsGameOver() bool {
	return g.game.Outcome() != chess.NoOutcome || g.IsDraw()
}

// PieceAt returns the occupant of a square as color+type, e.g. "wN".
func (g *Game) PieceAt(square string) (string, bool) {
	square = strings.ToLower(square)
	for sq, p := range g.game.Position().Board().SquareMap() {
		if sq.String() != square {
			continue
		}
		if p == chess.NoPiece {
			return "", false
		}
		return p.Color().String() + strings.ToUpper(p.Type().String()), true
	}
	return "", false
}

// PGN renders the game in PGN movetext.
func (g *Game) PGN() string {
	return g.game.String()
}

func color(c chess.Color) models.Color {
	if c == chess.Black {
		return models.Black
	}
	return models.White
}
