package engine

import (
	"math"

	"github.com/jacokyle01/chess-lab/uci"
)

// SkillRange is the human-facing difficulty scale, expressed in ELO.
type SkillRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// DefaultSkillRange matches the 400..2500 ELO slider of the play screen.
var DefaultSkillRange = SkillRange{Min: 400, Max: 2500}

// Normalize maps v onto [0,1] over the range.
func (r SkillRange) Normalize(v int) float64 {
	if r.Max <= r.Min {
		return 1
	}
	t := float64(v-r.Min) / float64(r.Max-r.Min)
	return math.Max(0, math.Min(1, t))
}

// Clamp limits v to the range.
func (r SkillRange) Clamp(v int) int {
	return max(r.Min, min(r.Max, v))
}

// Options are the engine settings derived from one skill value.
type Options struct {
	Elo        int
	SkillLevel int // 0..20
	SlowMover  int // 10..100
	MultiPV    int // 5 at the bottom of the range, 2 at the top
}

// Options applies the fixed linear mapping from a skill value to engine
// options.
func (r SkillRange) Options(v int) Options {
	t := r.Normalize(v)
	return Options{
		Elo:        r.Clamp(v),
		SkillLevel: int(math.Round(t * 20)),
		SlowMover:  int(math.Round(10 + t*90)),
		MultiPV:    int(math.Round(5 - t*3)),
	}
}

// Commands renders the options as setoption lines.
func (o Options) Commands() []string {
	return []string{
		uci.SetOption("UCI_LimitStrength", true),
		uci.SetOption("UCI_Elo", o.Elo),
		uci.SetOption("Skill Level", o.SkillLevel),
		uci.SetOption("Slow Mover", o.SlowMover),
		uci.SetOption("MultiPV", o.MultiPV),
	}
}

// MoveTime is the live-play search budget for a skill value: stronger
// settings think longer.
func (r SkillRange) MoveTime(v int) int {
	return int(math.Round(80 + float64(r.Clamp(v)-r.Min)*0.12))
}
