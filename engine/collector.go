package engine

import (
	"sort"

	"github.com/jacokyle01/chess-lab/models"
	"github.com/jacokyle01/chess-lab/uci"
)

// Collector aggregates the MultiPV lines of one request. Later updates at
// the same rank overwrite earlier ones.
type Collector struct {
	want     int
	depth    int
	maxDepth int
	lines    map[int]models.CandidateLine
}

// NewCollector returns a collector scoped to req.
func NewCollector(req models.EngineRequest) *Collector {
	return &Collector{
		want:  req.Lines(),
		depth: req.Depth,
		lines: make(map[int]models.CandidateLine, req.Lines()),
	}
}

// Add records one info line and reports whether the request can resolve
// early: the deepest depth seen reached the target and enough distinct
// ranks were collected. A zero depth target never resolves early.
func (c *Collector) Add(info uci.Info) bool {
	if info.MultiPV < 1 || info.MultiPV > c.want {
		return c.Ready()
	}

	c.lines[info.MultiPV] = models.CandidateLine{
		Rank:  info.MultiPV,
		Move:  info.Move,
		Score: info.Score,
		Depth: info.Depth,
		PV:    info.PV,
	}
	if info.Depth > c.maxDepth {
		c.maxDepth = info.Depth
	}
	return c.Ready()
}

// Ready reports whether the early-resolution condition holds.
func (c *Collector) Ready() bool {
	return c.depth > 0 && c.maxDepth >= c.depth && len(c.lines) >= c.want
}

// Len is the number of distinct ranks collected.
func (c *Collector) Len() int { return len(c.lines) }

// Lines returns the collected lines best first. Lines reported at different
// depths can disagree with their rank order, so they are ordered by score
// and renumbered from 1.
func (c *Collector) Lines() []models.CandidateLine {
	out := make([]models.CandidateLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Int() > out[j].Score.Int()
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Resolve builds the lines to hand back once the engine emitted bestmove.
// With nothing collected, a single unscored line is synthesized from the
// best move so callers still get the engine's choice.
func (c *Collector) Resolve(bestMove string) []models.CandidateLine {
	if len(c.lines) > 0 {
		return c.Lines()
	}
	if bestMove == "" {
		return nil
	}
	return []models.CandidateLine{{Rank: 1, Move: bestMove}}
}
