package game

import (
	"context"

	"github.com/jacokyle01/chess-lab/models"
)

// Rules is the chess rules and state collaborator.
type Rules interface {
	Reset(fen string) error
	InitialFEN() string
	FEN() string
	Turn() models.Color
	Apply(from, to, promo string) (models.Move, error)
	ApplyUCI(uci string) (models.Move, error)
	Undo() bool
	History() []models.Move
	InCheck() bool
	IsCheckmate() bool
	IsDraw() bool
	IsGameOver() bool
	PieceAt(square string) (string, bool)
	PGN() string
}

// Renderer is the board display collaborator.
type Renderer interface {
	SetPosition(fen string, animate bool)
	AnimateMove(from, to string)
	SetOrientation(c models.Color)
}

// Analyzer is the engine session as seen by live play.
type Analyzer interface {
	Analyze(ctx context.Context, req models.EngineRequest) (models.RequestOutcome, error)
	Configure(elo int) error
	NewGame() error
}

// Chooser picks one move among ranked candidates.
type Chooser interface {
	Choose(lines []models.CandidateLine, elo int, bias float64) (string, bool)
}

// NopRenderer discards display updates.
type NopRenderer struct{}

func (NopRenderer) SetPosition(string, bool)    {}
func (NopRenderer) AnimateMove(string, string)  {}
func (NopRenderer) SetOrientation(models.Color) {}
