package uci

import (
	"strconv"
	"strings"

	"github.com/jacokyle01/chess-lab/models"
)

// EventKind tags the events produced by Parse.
type EventKind int

const (
	EventReady EventKind = iota + 1
	EventInfo
	EventBestMove
)

// Info is a search-info line that carried a principal variation.
type Info struct {
	Depth   int
	MultiPV int
	Move    string
	Score   models.Score
	PV      []string
}

// Event is one typed engine event. Only the fields matching Kind are set.
type Event struct {
	Kind     EventKind
	Info     Info
	BestMove string // empty when the engine reported no move
	Ponder   string
}

// NoMove is what engines print after bestmove when there is nothing to play.
const NoMove = "(none)"

// Parse turns one engine output line into an event. Lines that are not
// recognized, or info lines missing depth, multipv or a pv move, yield false.
func Parse(line string) (Event, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Event{}, false
	}

	switch parts[0] {
	case "readyok":
		return Event{Kind: EventReady}, true
	case "bestmove":
		ev := Event{Kind: EventBestMove}
		if len(parts) > 1 && parts[1] != NoMove {
			ev.BestMove = parts[1]
		}
		if len(parts) > 3 && parts[2] == "ponder" {
			ev.Ponder = parts[3]
		}
		return ev, true
	case "info":
		info, ok := parseInfo(parts[1:])
		if !ok {
			return Event{}, false
		}
		return Event{Kind: EventInfo, Info: info}, true
	}
	return Event{}, false
}

func parseInfo(parts []string) (Info, bool) {
	var (
		info                 Info
		hasDepth, hasMultiPV bool
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if n, err := strconv.Atoi(parts[i+1]); err == nil {
					info.Depth, hasDepth = n, true
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if n, err := strconv.Atoi(parts[i+1]); err == nil && n > 0 {
					info.MultiPV, hasMultiPV = n, true
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				n, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						info.Score = models.Centipawns(n)
					case "mate":
						info.Score = models.MateIn(n)
					}
				}
				i += 2
			}
		case "pv":
			info.PV = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		case "string":
			// free text runs to end of line
			i = len(parts)
		}
	}

	if !hasDepth || !hasMultiPV || len(info.PV) == 0 {
		return Info{}, false
	}
	info.Move = info.PV[0]
	return info, true
}
