package rules

import (
	"fmt"

	"github.com/jacokyle01/chess-lab/models"
)

// Replay rebuilds the ply sequence of a game from its initial position.
// Index 0 is the initial position and carries no move.
type Replay struct{}

// Plies replays moves from initialFEN.
func (Replay) Plies(initialFEN string, moves []string) ([]models.ReviewPly, error) {
	g, err := New(initialFEN)
	if err != nil {
		return nil, err
	}

	plies := make([]models.ReviewPly, 0, len(moves)+1)
	plies = append(plies, models.ReviewPly{Index: 0, FEN: g.FEN()})
	for i, uci := range moves {
		m, err := g.ApplyUCI(uci)
		if err != nil {
			return nil, fmt.Errorf("ply %d: %w", i+1, err)
		}
		plies = append(plies, models.ReviewPly{
			Index: i + 1,
			FEN:   m.FEN,
			SAN:   m.SAN,
			UCI:   m.UCI,
			Mover: m.Mover,
			Mated: g.IsCheckmate(),
		})
	}
	return plies, nil
}
