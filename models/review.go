package models

import (
	"fmt"
	"strings"
)

// Color is the side that moved or is to move: "w" or "b".
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Other returns the opposite side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// ReviewPly is one position of a replayed game. Index 0 is the initial
// position and carries no move.
type ReviewPly struct {
	Index int    `json:"index"`
	FEN   string `json:"fen"`
	SAN   string `json:"san,omitempty"`
	UCI   string `json:"uci,omitempty"`
	Mover Color  `json:"mover,omitempty"`
	Mated bool   `json:"mated,omitempty"` // side to move is checkmated
}

// SideToMove reads the active color field of the ply's FEN.
func (p ReviewPly) SideToMove() Color {
	fields := strings.Fields(p.FEN)
	if len(fields) > 1 && fields[1] == "b" {
		return Black
	}
	return White
}

// EvalPoint holds the evaluation of one ply. Perspective is positive when the
// first-moving side stands better.
type EvalPoint struct {
	Set         bool  `json:"set"`
	Raw         Score `json:"raw"`
	Perspective int   `json:"perspective"`
}

// Severity tiers for an evaluation drop.
type Severity int

const (
	Unclassified Severity = iota
	Minor
	Moderate
	Severe
)

func (s Severity) String() string {
	switch s {
	case Minor:
		return "minor"
	case Moderate:
		return "moderate"
	case Severe:
		return "severe"
	default:
		return "unclassified"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "unclassified":
		*s = Unclassified
	case "minor":
		*s = Minor
	case "moderate":
		*s = Moderate
	case "severe":
		*s = Severe
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// MistakeRecord is an evaluation drop attributed to the mover of Ply.
type MistakeRecord struct {
	Ply      int      `json:"ply"`
	Drop     int      `json:"drop"`
	Severity Severity `json:"severity"`
	Mover    Color    `json:"mover"`
	SAN      string   `json:"san,omitempty"`
}

// ReviewState is the lifecycle of a review session.
type ReviewState string

const (
	ReviewIdle      ReviewState = "idle"
	ReviewRunning   ReviewState = "running"
	ReviewComplete  ReviewState = "complete"
	ReviewCancelled ReviewState = "cancelled"
)

// ReviewReport is a snapshot of a review session.
type ReviewReport struct {
	ID       string          `json:"id"`
	State    ReviewState     `json:"state"`
	Plies    []ReviewPly     `json:"plies"`
	Evals    []EvalPoint     `json:"evals"`
	Analyzed int             `json:"analyzed"`
	Mistakes []MistakeRecord `json:"mistakes"`
}
