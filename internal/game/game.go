package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
)

var ErrIllegalMove = errors.New("illegal move")

// ErrGameFinished wraps ErrIllegalMove: once a game is terminal there are no
// legal moves, so callers matching on ErrIllegalMove treat both the same.
var ErrGameFinished = fmt.Errorf("game already finished: %w", ErrIllegalMove)

// Move is an immutable from/to pair with an optional promotion piece. It is
// only ever constructed from the legal-move set or validated on Apply.
type Move struct {
	From      nchess.Square
	To        nchess.Square
	Promotion nchess.PieceType
}

// UCI renders the move in coordinate notation (e2e4, e7e8q).
func (m Move) UCI() string {
	return m.From.String() + m.To.String() + promoSuffix(m.Promotion)
}

func promoSuffix(p nchess.PieceType) string {
	switch p {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}

// Game owns the authoritative position. The board is always exactly the result
// of replaying the applied move list from the standard initial position; every
// mutation goes through Apply-style methods that validate legality first.
type Game struct {
	mu    sync.RWMutex
	inner *nchess.Game
}

func New() *Game {
	return &Game{inner: nchess.NewGame()}
}

// Apply validates the move against the current legal-move set and appends it.
// On ErrIllegalMove nothing is mutated.
func (g *Game) Apply(m Move) (Status, error) {
	return g.ApplyUCI(m.UCI())
}

// ApplyUCI applies a move given in coordinate notation.
func (g *Game) ApplyUCI(uci string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applyLocked(strings.ToLower(strings.TrimSpace(uci)), nchess.UCINotation{})
}

// ApplySAN applies a move given in standard algebraic notation. Engine replies
// arrive as SAN; human input may be either, so callers fall back between the
// two the way the bot service does.
func (g *Game) ApplySAN(san string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applyLocked(strings.TrimSpace(san), nchess.AlgebraicNotation{})
}

func (g *Game) applyLocked(text string, notation nchess.Notation) (Status, error) {
	if statusFromGame(g.inner).Terminal() {
		return statusFromGame(g.inner), ErrGameFinished
	}
	if text == "" {
		return statusFromGame(g.inner), ErrIllegalMove
	}
	pos := g.inner.Position()
	mv, err := notation.Decode(pos, text)
	if err != nil {
		return statusFromGame(g.inner), ErrIllegalMove
	}
	if err := g.inner.Move(mv, nil); err != nil {
		return statusFromGame(g.inner), ErrIllegalMove
	}
	return statusFromGame(g.inner), nil
}

// LegalMoves returns the legal-move set of the current position. Empty exactly
// when the position is checkmate or stalemate.
func (g *Game) LegalMoves() []Move {
	g.mu.RLock()
	defer g.mu.RUnlock()
	valid := g.inner.ValidMoves()
	moves := make([]Move, 0, len(valid))
	for _, mv := range valid {
		moves = append(moves, Move{From: mv.S1(), To: mv.S2(), Promotion: mv.Promo()})
	}
	return moves
}

// Status is a pure query with no side effects.
func (g *Game) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return statusFromGame(g.inner)
}

// Reset atomically returns the game to the standard initial position.
func (g *Game) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inner = nchess.NewGame()
}

// Resign ends the game against the given color.
func (g *Game) Resign(loser nchess.Color) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inner.Resign(loser)
	return statusFromGame(g.inner)
}

// TrimPlies removes the last n plies and replays the remainder from the
// initial position. Used for undo; there is no in-place takeback in the rules
// library and replay keeps the board/move-list invariant trivially true.
func (g *Game) TrimPlies(n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	moves := movesUCILocked(g.inner)
	if n <= 0 || n > len(moves) {
		return fmt.Errorf("cannot trim %d of %d plies", n, len(moves))
	}
	replayed, err := replay(moves[:len(moves)-n])
	if err != nil {
		return err
	}
	g.inner = replayed
	return nil
}

// Restore replaces the game with the replay of a stored UCI move list.
func (g *Game) Restore(movesUCI []string) error {
	replayed, err := replay(movesUCI)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inner = replayed
	return nil
}

func replay(movesUCI []string) (*nchess.Game, error) {
	replayed := nchess.NewGame()
	for _, mv := range movesUCI {
		if err := replayed.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %s: %w", mv, err)
		}
	}
	return replayed, nil
}

// FEN is the transportable encoding of the current position.
func (g *Game) FEN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.FEN()
}

// Turn returns the side to move.
func (g *Game) Turn() nchess.Color {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.Position().Turn()
}

// Ply returns the number of applied half-moves.
func (g *Game) Ply() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.inner.Moves())
}

// MovesUCI returns the applied move list in coordinate notation.
func (g *Game) MovesUCI() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return movesUCILocked(g.inner)
}

func movesUCILocked(inner *nchess.Game) []string {
	moves := inner.Moves()
	positions := inner.Positions()
	notation := nchess.UCINotation{}
	out := make([]string, 0, len(moves))
	for i, mv := range moves {
		if i < len(positions) {
			out = append(out, strings.ToLower(notation.Encode(positions[i], mv)))
		}
	}
	return out
}

// MovesSAN returns the applied move list in standard algebraic notation.
func (g *Game) MovesSAN() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	moves := g.inner.Moves()
	positions := g.inner.Positions()
	notation := nchess.AlgebraicNotation{}
	out := make([]string, 0, len(moves))
	for i, mv := range moves {
		if i < len(positions) {
			out = append(out, notation.Encode(positions[i], mv))
		}
	}
	return out
}

// Board exposes the current board for rendering. Read-only by convention: the
// renderer never mutates it.
func (g *Game) Board() *nchess.Board {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.Position().Board()
}

// LastMove returns the most recent applied move, if any.
func (g *Game) LastMove() (Move, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	moves := g.inner.Moves()
	if len(moves) == 0 {
		return Move{}, false
	}
	last := moves[len(moves)-1]
	return Move{From: last.S1(), To: last.S2(), Promotion: last.Promo()}, true
}
