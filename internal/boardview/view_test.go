package boardview

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/gdamore/tcell/v2"

	"github.com/gmatiukhin/nn-chess-frontend/internal/game"
	"github.com/gmatiukhin/nn-chess-frontend/internal/turn"
)

func simScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	s.SetSize(100, 30)
	t.Cleanup(s.Fini)
	return s
}

func keyEvent(key tcell.Key, r rune) *tcell.EventKey {
	return tcell.NewEventKey(key, r, tcell.ModNone)
}

func typeText(v *View, text string) {
	for _, r := range text {
		v.HandleEvent(keyEvent(tcell.KeyRune, r))
	}
}

func TestEnterSubmitsTypedMove(t *testing.T) {
	var submitted string
	v := New(simScreen(t), Actions{
		Submit: func(text string) error {
			submitted = text
			return nil
		},
	})

	typeText(v, "e2e4")
	v.HandleEvent(keyEvent(tcell.KeyEnter, 0))
	if submitted != "e2e4" {
		t.Fatalf("submitted %q", submitted)
	}

	// Enter with an empty buffer must not call Submit again.
	submitted = ""
	v.HandleEvent(keyEvent(tcell.KeyEnter, 0))
	if submitted != "" {
		t.Fatalf("empty enter submitted %q", submitted)
	}
}

func TestBackspaceEditsInput(t *testing.T) {
	var submitted string
	v := New(simScreen(t), Actions{
		Submit: func(text string) error {
			submitted = text
			return nil
		},
	})

	typeText(v, "e2e5")
	v.HandleEvent(keyEvent(tcell.KeyBackspace2, 0))
	typeText(v, "4")
	v.HandleEvent(keyEvent(tcell.KeyEnter, 0))
	if submitted != "e2e4" {
		t.Fatalf("submitted %q", submitted)
	}
}

func TestInputLengthIsBounded(t *testing.T) {
	var submitted string
	v := New(simScreen(t), Actions{
		Submit: func(text string) error {
			submitted = text
			return nil
		},
	})

	typeText(v, "abcdefghijkl")
	v.HandleEvent(keyEvent(tcell.KeyEnter, 0))
	if submitted != "abcdefgh" {
		t.Fatalf("submitted %q, want the buffer capped at 8 runes", submitted)
	}
}

func TestControlKeysDispatchActions(t *testing.T) {
	var newGame, retry, undo, resign, export, quit bool
	v := New(simScreen(t), Actions{
		Submit:  func(string) error { return nil },
		NewGame: func() { newGame = true },
		Retry:   func() error { retry = true; return nil },
		Undo:    func() error { undo = true; return nil },
		Resign:  func() error { resign = true; return nil },
		Export:  func() error { export = true; return nil },
		Quit:    func() { quit = true },
	})

	v.HandleEvent(keyEvent(tcell.KeyCtrlN, 0))
	v.HandleEvent(keyEvent(tcell.KeyCtrlR, 0))
	v.HandleEvent(keyEvent(tcell.KeyCtrlU, 0))
	v.HandleEvent(keyEvent(tcell.KeyCtrlG, 0))
	v.HandleEvent(keyEvent(tcell.KeyCtrlE, 0))
	v.HandleEvent(keyEvent(tcell.KeyEscape, 0))

	if !newGame || !retry || !undo || !resign || !export || !quit {
		t.Fatalf("actions dispatched: new=%v retry=%v undo=%v resign=%v export=%v quit=%v",
			newGame, retry, undo, resign, export, quit)
	}
}

func TestFailedActionSetsNotice(t *testing.T) {
	v := New(simScreen(t), Actions{
		Retry: func() error { return errors.New("engine busy") },
	})

	v.HandleEvent(keyEvent(tcell.KeyCtrlR, 0))
	if v.notice == "" {
		t.Fatalf("failed action left no notice")
	}
}

func screenText(s tcell.SimulationScreen) string {
	cells, w, h := s.GetContents()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cell := cells[y*w+x]
			if len(cell.Runes) > 0 {
				b.WriteRune(cell.Runes[0])
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestDrawSpellsColorsOut(t *testing.T) {
	s := simScreen(t)
	v := New(s, Actions{})
	g := nchess.NewGame()

	v.Draw(turn.Snapshot{
		Phase: turn.AwaitingHuman,
		FEN:   g.FEN(),
		Turn:  nchess.White,
	}, g.Position().Board())
	if text := screenText(s); !strings.Contains(text, "white to play") {
		t.Fatalf("sidebar does not spell the color out:\n%s", text)
	}

	v.Draw(turn.Snapshot{
		Phase: turn.GameOver,
		FEN:   g.FEN(),
		Turn:  nchess.Black,
		Status: game.Status{
			Kind:   game.Checkmate,
			Winner: nchess.White,
			Loser:  nchess.Black,
		},
	}, g.Position().Board())
	if text := screenText(s); !strings.Contains(text, "checkmate, white wins") {
		t.Fatalf("game-over line does not spell the color out:\n%s", text)
	}
}

func TestDrawDoesNotPanic(t *testing.T) {
	s := simScreen(t)
	v := New(s, Actions{})
	g := nchess.NewGame()

	v.Draw(turn.Snapshot{
		Phase:    turn.AwaitingHuman,
		FEN:      g.FEN(),
		Turn:     nchess.White,
		MovesSAN: []string{},
	}, g.Position().Board())

	v.Draw(turn.Snapshot{
		Phase:     turn.RequestInFlight,
		Epoch:     3,
		FEN:       g.FEN(),
		Turn:      nchess.Black,
		LastError: "engine error: network_error",
	}, g.Position().Board())
}
