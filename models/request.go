package models

// EngineRequest is a single search handed to the engine session.
// It is never mutated after being issued.
type EngineRequest struct {
	ID      string `json:"id"`
	FEN     string `json:"fen"`
	TimeMS  int    `json:"time_ms"`
	MultiPV int    `json:"multipv"`
	Depth   int    `json:"depth"` // early-resolution target, 0 waits for bestmove
}

// Lines returns the requested line count, never less than one.
func (r EngineRequest) Lines() int {
	if r.MultiPV < 1 {
		return 1
	}
	return r.MultiPV
}
