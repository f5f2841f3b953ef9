package game

import "sync/atomic"

// Fingerprint identifies the live game state a request was computed against.
type Fingerprint struct {
	Generation uint64
	FEN        string
}

// Guard detects engine results that arrive after the live game changed.
// Every mutation of the game must call Touch.
type Guard struct {
	gen atomic.Uint64
}

// Touch records a change of the live state.
func (g *Guard) Touch() { g.gen.Add(1) }

// Capture fingerprints the current state.
func (g *Guard) Capture(fen string) Fingerprint {
	return Fingerprint{Generation: g.gen.Load(), FEN: fen}
}

// Fresh reports whether fp still describes the live state.
func (g *Guard) Fresh(fp Fingerprint, fen string) bool {
	return fp.Generation == g.gen.Load() && fp.FEN == fen
}
