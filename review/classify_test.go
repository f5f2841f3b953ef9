package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jacokyle01/chess-lab/models"
)

const (
	whiteFEN = "4k3/8/8/8/8/8/8/4K3 w - - 0 1"
	blackFEN = "4k3/8/8/8/8/8/8/4K3 b - - 0 1"
)

func TestSeverityThresholds(t *testing.T) {
	assert.Equal(t, models.Unclassified, Severity(219))
	assert.Equal(t, models.Minor, Severity(220))
	assert.Equal(t, models.Minor, Severity(349))
	assert.Equal(t, models.Moderate, Severity(350))
	assert.Equal(t, models.Moderate, Severity(599))
	assert.Equal(t, models.Severe, Severity(600))
	assert.Equal(t, models.Unclassified, Severity(-900))
}

func TestClassifyShortAndUnsetEvals(t *testing.T) {
	plies := []models.ReviewPly{
		{Index: 0, FEN: whiteFEN},
		{Index: 1, FEN: blackFEN, Mover: models.White},
		{Index: 2, FEN: whiteFEN, Mover: models.Black},
		{Index: 3, FEN: blackFEN, Mover: models.White},
	}
	evals := []models.EvalPoint{
		{Set: true, Perspective: 300},
		{},
	}

	got := Classify(plies, evals)
	// white went from +300 to an unset point, read as zero
	assert.Equal(t, []models.MistakeRecord{{Ply: 1, Drop: 300, Severity: models.Minor, Mover: models.White}}, got)
	assert.Nil(t, Classify(nil, nil))
}

func TestClassifyBlackStartingPosition(t *testing.T) {
	// black moves first, so positive favors black
	plies := []models.ReviewPly{
		{Index: 0, FEN: blackFEN},
		{Index: 1, FEN: whiteFEN, Mover: models.Black},
		{Index: 2, FEN: blackFEN, Mover: models.White},
	}
	evals := []models.EvalPoint{
		{Set: true, Perspective: 0},
		{Set: true, Perspective: -250},
		{Set: true, Perspective: 400},
	}

	got := Classify(plies, evals)
	assert.Equal(t, []models.MistakeRecord{
		{Ply: 2, Drop: 650, Severity: models.Severe, Mover: models.White},
		{Ply: 1, Drop: 250, Severity: models.Minor, Mover: models.Black},
	}, got)
}

func TestPerspective(t *testing.T) {
	white := models.ReviewPly{FEN: whiteFEN}
	black := models.ReviewPly{FEN: blackFEN}

	assert.Equal(t, 50, Perspective(white, models.White, models.Centipawns(50)))
	assert.Equal(t, -50, Perspective(black, models.White, models.Centipawns(50)))
	assert.Equal(t, models.MateScore, Perspective(black, models.White, models.MateIn(0)))
	assert.Equal(t, -(models.MateScore - 3), Perspective(black, models.White, models.MateIn(3)))
}
