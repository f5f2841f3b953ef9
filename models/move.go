package models

// Move is one played ply as recorded in the game history.
type Move struct {
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
	Mover Color  `json:"mover"`
	FEN   string `json:"fen"` // position after the move
}

// From is the origin square of the move.
func (m Move) From() string {
	if len(m.UCI) < 4 {
		return ""
	}
	return m.UCI[:2]
}

// To is the destination square of the move.
func (m Move) To() string {
	if len(m.UCI) < 4 {
		return ""
	}
	return m.UCI[2:4]
}
