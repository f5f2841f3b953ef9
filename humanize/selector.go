// Package humanize picks a move from ranked engine candidates the way a
// player of a given strength might, occasionally settling for a worse line.
package humanize

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/jacokyle01/chess-lab/engine"
	"github.com/jacokyle01/chess-lab/metrics"
	"github.com/jacokyle01/chess-lab/models"
)

// Tuned constants of the blunder model.
const (
	baseBlunder     = 0.28
	maxBlunder      = 0.9
	baseDrop        = 500.0
	dropSkillSlope  = 450.0
	minDrop         = 30.0
	maxDrop         = 900.0
	favorableCap    = 800.0
	favorableFloor  = 0.4
	dropWeightScale = 50.0
)

// Params are the per-move blunder settings.
type Params struct {
	Probability float64
	MaxDrop     float64
}

// ComputeParams derives the blunder probability and tolerated score drop
// from a normalized skill t in [0,1], an error bias in [-1,1] and the best
// candidate's score in centipawns.
func ComputeParams(t, bias float64, bestScore int) Params {
	t = clamp(t, 0, 1)
	bias = clamp(bias, -1, 1)

	p := (1 - t) * baseBlunder
	drop := baseDrop - t*dropSkillSlope

	if bias < 0 {
		p *= 1 + -bias*1.25
		drop *= 1 + -bias*0.9
	} else {
		p *= 1 - bias*0.75
		drop *= 1 - bias*0.6
	}

	// winning positions are played more cleanly
	if bestScore > 0 {
		f := math.Min(float64(bestScore), favorableCap) / favorableCap
		p *= 1 - (1-favorableFloor)*f
	}

	return Params{
		Probability: clamp(p, 0, maxBlunder),
		MaxDrop:     clamp(drop, minDrop, maxDrop),
	}
}

// Decision is the outcome of one selection.
type Decision struct {
	Move    string
	Blunder bool
	Params  Params
}

// Selector draws humanized moves. It is safe for concurrent use.
type Selector struct {
	skill engine.SkillRange

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a selector over the given skill scale, seeded with seed.
func New(skill engine.SkillRange, seed uint64) *Selector {
	return &Selector{
		skill: skill,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Choose returns the move to play, or false when there are no candidates.
func (s *Selector) Choose(lines []models.CandidateLine, elo int, bias float64) (string, bool) {
	d, ok := s.Decide(lines, elo, bias)
	return d.Move, ok
}

// Decide runs one draw over lines, which must be ordered best first.
func (s *Selector) Decide(lines []models.CandidateLine, elo int, bias float64) (Decision, bool) {
	if len(lines) == 0 {
		return Decision{}, false
	}

	best := lines[0]
	bestScore := best.Score.Int()
	params := ComputeParams(s.skill.Normalize(elo), bias, bestScore)
	d := Decision{Move: best.Move, Params: params}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() >= params.Probability {
		metrics.SelectorDraws.WithLabelValues("best").Inc()
		return d, true
	}
	d.Blunder = true
	metrics.SelectorDraws.WithLabelValues("blunder").Inc()

	var (
		pool    []models.CandidateLine
		weights []float64
		total   float64
	)
	for _, l := range lines[1:] {
		if !l.Score.Valid() || l.Move == "" {
			continue
		}
		drop := float64(bestScore - l.Score.Int())
		if drop > params.MaxDrop {
			continue
		}
		w := 1 / (1 + math.Max(drop, 0)/dropWeightScale)
		pool = append(pool, l)
		weights = append(weights, w)
		total += w
	}
	if len(pool) == 0 {
		return d, true
	}

	r := s.rng.Float64() * total
	for i, w := range weights {
		if r < w {
			d.Move = pool[i].Move
			return d, true
		}
		r -= w
	}
	d.Move = pool[len(pool)-1].Move
	return d, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
