package review

import (
	"sort"

	"github.com/jacokyle01/chess-lab/models"
)

// Swing thresholds in centipawns.
const (
	SevereDrop   = 600
	ModerateDrop = 350
	MinorDrop    = 220
)

// Severity classifies an evaluation drop.
func Severity(drop int) models.Severity {
	switch {
	case drop >= SevereDrop:
		return models.Severe
	case drop >= ModerateDrop:
		return models.Moderate
	case drop >= MinorDrop:
		return models.Minor
	}
	return models.Unclassified
}

// Classify finds the plies whose mover made the evaluation worse for
// themselves by at least MinorDrop. Unset evaluations count as zero. The
// result is ordered by drop, largest first.
func Classify(plies []models.ReviewPly, evals []models.EvalPoint) []models.MistakeRecord {
	value := func(i int) int {
		if i < len(evals) && evals[i].Set {
			return evals[i].Perspective
		}
		return 0
	}

	if len(plies) == 0 {
		return nil
	}
	first := plies[0].SideToMove()

	var out []models.MistakeRecord
	for i := 1; i < len(plies); i++ {
		swing := value(i) - value(i-1)
		drop := -swing
		if plies[i].Mover != first {
			drop = swing
		}
		sev := Severity(drop)
		if sev == models.Unclassified {
			continue
		}
		out = append(out, models.MistakeRecord{
			Ply:      i,
			Drop:     drop,
			Severity: sev,
			Mover:    plies[i].Mover,
			SAN:      plies[i].SAN,
		})
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Drop > out[b].Drop })
	return out
}

// Perspective converts an engine score, given from the side to move at ply,
// to the first-moving side's point of view.
func Perspective(ply models.ReviewPly, first models.Color, raw models.Score) int {
	if ply.SideToMove() != first {
		return -raw.Int()
	}
	return raw.Int()
}
