package game

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StatusKind classifies how (or whether) a game has ended.
type StatusKind int

const (
	InProgress StatusKind = iota
	Checkmate
	Stalemate
	DrawByRule
	Resigned
)

func (k StatusKind) String() string {
	switch k {
	case InProgress:
		return "in_progress"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case DrawByRule:
		return "draw"
	case Resigned:
		return "resigned"
	default:
		return "unknown"
	}
}

// Status is derived purely from the position and is recomputed after every
// applied move. Winner is set for Checkmate, Loser for Resigned, Reason for
// DrawByRule.
type Status struct {
	Kind   StatusKind
	Winner nchess.Color
	Loser  nchess.Color
	Reason string
}

// Terminal reports whether no further moves may be applied.
func (s Status) Terminal() bool {
	return s.Kind != InProgress
}

func statusFromGame(g *nchess.Game) Status {
	switch g.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		winner := nchess.White
		if g.Outcome() == nchess.BlackWon {
			winner = nchess.Black
		}
		if g.Method() == nchess.Resignation {
			return Status{Kind: Resigned, Winner: winner, Loser: winner.Other()}
		}
		return Status{Kind: Checkmate, Winner: winner}
	case nchess.Draw:
		if g.Method() == nchess.Stalemate {
			return Status{Kind: Stalemate}
		}
		return Status{Kind: DrawByRule, Reason: strings.ToLower(g.Method().String())}
	default:
		return Status{Kind: InProgress}
	}
}
