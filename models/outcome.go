package models

// MateScore is the magnitude a forced mate is mapped to when scores are
// compared against centipawn values.
const MateScore = 100000

// Score is an engine evaluation from the side to move. At most one of CP and
// Mate is set; a zero Score means the engine reported nothing.
type Score struct {
	CP   *int `json:"cp,omitempty"`
	Mate *int `json:"mate,omitempty"`
}

// Centipawns builds a centipawn score.
func Centipawns(cp int) Score { return Score{CP: &cp} }

// MateIn builds a mate-distance score. Negative n means the side to move is mated.
func MateIn(n int) Score { return Score{Mate: &n} }

// Valid reports whether the score carries a value.
func (s Score) Valid() bool { return s.CP != nil || s.Mate != nil }

// Int maps the score onto a single well-ordered integer scale. Mates saturate
// at ±MateScore, shorter mates ranking further from zero.
func (s Score) Int() int {
	switch {
	case s.Mate != nil:
		m := *s.Mate
		if m > 0 {
			return MateScore - m
		}
		return -MateScore - m
	case s.CP != nil:
		return *s.CP
	}
	return 0
}

// CandidateLine is one ranked line from a MultiPV search.
type CandidateLine struct {
	Rank  int      `json:"rank"`
	Move  string   `json:"move"` // coordinate notation, e.g. e2e4 or e7e8q
	Score Score    `json:"score"`
	Depth int      `json:"depth"`
	PV    []string `json:"pv,omitempty"`
}

// OutcomeStatus describes how a request resolved.
type OutcomeStatus string

const (
	StatusComplete OutcomeStatus = "complete"
	StatusPartial  OutcomeStatus = "partial"
	StatusBusy     OutcomeStatus = "busy"
)

// RequestOutcome is the ranked result of one EngineRequest.
type RequestOutcome struct {
	RequestID string          `json:"request_id"`
	FEN       string          `json:"fen"`
	Status    OutcomeStatus   `json:"status"`
	Lines     []CandidateLine `json:"lines"`
	BestMove  string          `json:"best_move,omitempty"`
}

// Busy reports whether the request was rejected because another was in flight.
func (o RequestOutcome) Busy() bool { return o.Status == StatusBusy }

// Empty reports whether the outcome carries no candidate at all.
func (o RequestOutcome) Empty() bool { return len(o.Lines) == 0 }

// Best returns the rank-1 line.
func (o RequestOutcome) Best() (CandidateLine, bool) {
	if len(o.Lines) == 0 {
		return CandidateLine{}, false
	}
	return o.Lines[0], true
}
