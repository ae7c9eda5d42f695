// Package boardview is the thin per-frame adapter between the terminal and
// the turn controller. It only reads controller snapshots and forwards user
// actions; it never mutates game state directly.
package boardview

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/gdamore/tcell/v2"

	"github.com/gmatiukhin/nn-chess-frontend/internal/game"
	"github.com/gmatiukhin/nn-chess-frontend/internal/turn"
)

const (
	leftMargin = 4
	topMargin  = 2
)

var (
	defStyle     = tcell.StyleDefault.Background(tcell.ColorReset).Foreground(tcell.ColorReset)
	lightSquare  = tcell.NewRGBColor(0xf4, 0xc5, 0x97)
	darkSquare   = tcell.NewRGBColor(0xc8, 0x85, 0x45)
	lastMoveBg   = tcell.NewRGBColor(0xf0, 0xe6, 0x8c)
	whitePieceFg = tcell.ColorWhite
	blackPieceFg = tcell.ColorBlack
	errStyle     = tcell.StyleDefault.Foreground(tcell.ColorRed)
	dimStyle     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

var spinnerFrames = []rune{'|', '/', '-', '\\'}

// Actions are the controller entry points the view may trigger. Quit and
// Export are supplied by the host loop.
type Actions struct {
	Submit  func(text string) error
	NewGame func()
	Retry   func() error
	Resign  func() error
	Undo    func() error
	Export  func() error
	Quit    func()
}

// View draws one frame from a controller snapshot and keeps the small amount
// of UI-local state (typed input, transient notice).
type View struct {
	screen  tcell.Screen
	actions Actions

	input  []rune
	notice string
	frame  int
}

func New(screen tcell.Screen, actions Actions) *View {
	return &View{screen: screen, actions: actions}
}

// HandleEvent translates a tcell event into controller actions.
func (v *View) HandleEvent(ev tcell.Event) {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		return
	}
	switch key.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		v.actions.Quit()
	case tcell.KeyCtrlN:
		v.actions.NewGame()
		v.notice = ""
		v.input = v.input[:0]
	case tcell.KeyCtrlR:
		v.report(v.actions.Retry())
	case tcell.KeyCtrlU:
		v.report(v.actions.Undo())
	case tcell.KeyCtrlG:
		v.report(v.actions.Resign())
	case tcell.KeyCtrlE:
		if err := v.actions.Export(); err != nil {
			v.notice = fmt.Sprintf("export failed: %v", err)
		} else {
			v.notice = "board exported"
		}
	case tcell.KeyEnter:
		text := strings.TrimSpace(string(v.input))
		v.input = v.input[:0]
		if text == "" {
			return
		}
		v.report(v.actions.Submit(text))
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(v.input) > 0 {
			v.input = v.input[:len(v.input)-1]
		}
	case tcell.KeyRune:
		if len(v.input) < 8 {
			v.input = append(v.input, key.Rune())
		}
	}
}

func (v *View) report(err error) {
	if err != nil {
		v.notice = userMessage(err)
		return
	}
	v.notice = ""
}

func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case strings.Contains(err.Error(), game.ErrIllegalMove.Error()):
		return "illegal move"
	default:
		return err.Error()
	}
}

// Draw renders one frame. Called once per tick after controller.Tick().
func (v *View) Draw(snap turn.Snapshot, board *nchess.Board) {
	v.frame++
	s := v.screen
	s.Clear()

	flipped := snap.PlayerColor == nchess.Black
	v.drawBoard(board, snap, flipped)
	v.drawSidebar(snap)
	v.drawStatusLine(snap)
	s.Show()
}

func (v *View) drawBoard(board *nchess.Board, snap turn.Snapshot, flipped bool) {
	for file := 0; file < 8; file++ {
		for rank := 0; rank < 8; rank++ {
			sq := nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
			col, row := file, 7-rank
			if flipped {
				col, row = 7-file, rank
			}
			x := leftMargin + col*2
			y := topMargin + row

			bg := lightSquare
			if (file+rank)%2 == 0 {
				bg = darkSquare
			}
			if snap.HasLastMove && (sq == snap.LastMove.From || sq == snap.LastMove.To) {
				bg = lastMoveBg
			}
			style := tcell.StyleDefault.Background(bg)

			piece := board.Piece(sq)
			r := ' '
			if piece != nchess.NoPiece {
				r = pieceRune(piece)
				if piece.Color() == nchess.White {
					style = style.Foreground(whitePieceFg)
				} else {
					style = style.Foreground(blackPieceFg)
				}
			}
			v.screen.SetContent(x, y, r, nil, style)
			v.screen.SetContent(x+1, y, ' ', nil, style)
		}
	}

	// Coordinates.
	files := "abcdefgh"
	for i := 0; i < 8; i++ {
		fi, ri := i, i
		if flipped {
			fi, ri = 7-i, 7-i
		}
		drawText(v.screen, leftMargin+i*2, topMargin+8, dimStyle, string(files[fi]))
		drawText(v.screen, leftMargin-2, topMargin+i, dimStyle, fmt.Sprintf("%d", 8-ri))
	}
}

func (v *View) drawSidebar(snap turn.Snapshot) {
	x := leftMargin + 20
	drawText(v.screen, x, topMargin, defStyle, "nn-chess")

	turnLine := fmt.Sprintf("move %d, %s to play", snap.Ply/2+1, game.ColorName(snap.Turn))
	drawText(v.screen, x, topMargin+1, dimStyle, turnLine)

	tail := snap.MovesSAN
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	for i, san := range tail {
		drawText(v.screen, x, topMargin+3+i, defStyle, san)
	}
}

func (v *View) drawStatusLine(snap turn.Snapshot) {
	y := topMargin + 10

	switch snap.Phase {
	case turn.RequestInFlight:
		spin := spinnerFrames[v.frame%len(spinnerFrames)]
		drawText(v.screen, leftMargin, y, dimStyle, fmt.Sprintf("%c engine thinking...", spin))
	case turn.GameOver:
		drawText(v.screen, leftMargin, y, defStyle, gameOverText(snap.Status))
		drawText(v.screen, leftMargin, y+1, dimStyle, "ctrl-n: new game")
	default:
		drawText(v.screen, leftMargin, y, defStyle, "your move> "+string(v.input))
	}

	if snap.LastError != "" {
		drawText(v.screen, leftMargin, y+2, errStyle, "engine error: "+snap.LastError+" (ctrl-r to retry)")
	}
	if v.notice != "" {
		drawText(v.screen, leftMargin, y+3, errStyle, v.notice)
	}
	drawText(v.screen, leftMargin, y+5, dimStyle, "ctrl-n new  ctrl-u undo  ctrl-g resign  ctrl-e export  esc quit")
}

func gameOverText(status game.Status) string {
	switch status.Kind {
	case game.Checkmate:
		return fmt.Sprintf("checkmate, %s wins", game.ColorName(status.Winner))
	case game.Stalemate:
		return "draw by stalemate"
	case game.DrawByRule:
		return "draw: " + status.Reason
	case game.Resigned:
		return fmt.Sprintf("%s resigned", game.ColorName(status.Loser))
	default:
		return "game over"
	}
}

func pieceRune(p nchess.Piece) rune {
	switch p.Type() {
	case nchess.King:
		return 'K'
	case nchess.Queen:
		return 'Q'
	case nchess.Rook:
		return 'R'
	case nchess.Bishop:
		return 'B'
	case nchess.Knight:
		return 'N'
	default:
		return 'P'
	}
}

// drawText places text at the given coordinates with the provided style.
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
