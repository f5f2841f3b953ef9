package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/chess-lab/models"
)

func TestApplyAndHistory(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	assert.Equal(t, StartFEN, g.FEN())
	assert.Equal(t, models.White, g.Turn())

	m, err := g.Apply("e2", "e4", "")
	require.NoError(t, err)
	assert.Equal(t, "e2e4", m.UCI)
	assert.Equal(t, "e4", m.SAN)
	assert.Equal(t, models.White, m.Mover)
	assert.Equal(t, models.Black, g.Turn())

	_, err = g.Apply("e7", "e4", "")
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.Len(t, g.History(), 1)

	piece, ok := g.PieceAt("e4")
	require.True(t, ok)
	assert.Equal(t, "wP", piece)
	_, ok = g.PieceAt("e2")
	assert.False(t, ok)
}

func TestUndoRestoresPosition(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	for _, mv := range []string{"e2e4", "e7e5", "g1f3"} {
		_, err := g.ApplyUCI(mv)
		require.NoError(t, err)
	}
	afterTwo := g.History()[1].FEN

	require.True(t, g.Undo())
	assert.Equal(t, afterTwo, g.FEN())
	assert.Len(t, g.History(), 2)

	require.True(t, g.Undo())
	require.True(t, g.Undo())
	assert.False(t, g.Undo())
	assert.Equal(t, StartFEN, g.FEN())
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	g, err := New("8/P7/8/8/8/8/8/k6K w - - 0 1")
	require.NoError(t, err)

	m, err := g.Apply("a7", "a8", "")
	require.NoError(t, err)
	assert.Equal(t, "a7a8q", m.UCI)
	piece, _ := g.PieceAt("a8")
	assert.Equal(t, "wQ", piece)
}

func TestFoolsMate(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		_, err := g.ApplyUCI(mv)
		require.NoError(t, err)
	}
	assert.True(t, g.InCheck())
	assert.True(t, g.IsCheckmate())
	assert.True(t, g.IsGameOver())
	assert.False(t, g.IsDraw())
}

func TestFromPGN(t *testing.T) {
	g, err := FromPGN(strings.NewReader("[Event \"casual\"]\n[Result \"*\"]\n\n1. e4 e5 2. Nf3 Nc6 3. Bb5 a6 *\n"))
	require.NoError(t, err)

	hist := g.History()
	require.Len(t, hist, 6)
	assert.Equal(t, "g1f3", hist[2].UCI)
	assert.Equal(t, "Bb5", hist[4].SAN)
	assert.Equal(t, models.Black, hist[5].Mover)
}

func TestReplayPlies(t *testing.T) {
	plies, err := Replay{}.Plies("", []string{"d2d4", "d7d5", "c2c4"})
	require.NoError(t, err)
	require.Len(t, plies, 4)

	assert.Equal(t, models.ReviewPly{Index: 0, FEN: StartFEN}, plies[0])
	assert.Equal(t, "c4", plies[3].SAN)
	assert.Equal(t, models.White, plies[3].Mover)
	assert.Equal(t, models.Black, plies[2].Mover)

	_, err = Replay{}.Plies("", []string{"d2d4", "d2d4"})
	assert.ErrorIs(t, err, ErrIllegalMove)
}
