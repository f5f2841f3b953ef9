package uci

import (
	"fmt"
	"strconv"
)

// Outbound commands of the UCI protocol.
const (
	CmdUCI     = "uci"
	CmdIsReady = "isready"
	CmdNewGame = "ucinewgame"
	CmdStop    = "stop"
	CmdQuit    = "quit"
)

// SetOption formats a setoption command.
func SetOption(name string, value any) string {
	return fmt.Sprintf("setoption name %s value %v", name, value)
}

// Position formats a position command for a FEN string.
func Position(fen string) string {
	return "position fen " + fen
}

// GoMoveTime formats a time-bounded search command.
func GoMoveTime(ms int) string {
	return "go movetime " + strconv.Itoa(ms)
}
