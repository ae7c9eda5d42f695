// Package turn orchestrates whose move it is. The Controller is the single
// writer of the turn state and the game; the render loop only reads snapshots
// and feeds user actions back through the exported methods.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmatiukhin/nn-chess-frontend/internal/engineio"
	"github.com/gmatiukhin/nn-chess-frontend/internal/game"
	"github.com/gmatiukhin/nn-chess-frontend/internal/session"
)

var (
	ErrNotYourTurn     = errors.New("not your turn")
	ErrBusy            = errors.New("engine request in flight")
	ErrGameOver        = errors.New("game is over")
	ErrNoUndo          = errors.New("no moves available to undo")
	ErrSessionMismatch = errors.New("stored session belongs to a different engine variant")
)

// Phase is the controller's coarse state.
type Phase int

const (
	AwaitingHuman Phase = iota
	RequestInFlight
	GameOver
)

func (p Phase) String() string {
	switch p {
	case AwaitingHuman:
		return "awaiting_human"
	case RequestInFlight:
		return "request_in_flight"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// MoveRequester builds the engine request for a position snapshot. Satisfied
// by engineclient.BoundVariant.
type MoveRequester interface {
	RequestMove(fen string, epoch uint64) engineio.Task
}

// StepRequester is the sliceable form of the request. When both the requester
// and the channel support it, requests are dispatched as steppers so the
// cooperative channel drives them one phase per poll instead of spawning
// anything.
type StepRequester interface {
	RequestMoveStepper(fen string, epoch uint64) engineio.Stepper
}

type stepSender interface {
	SendStepper(s engineio.Stepper) engineio.Handle
}

// Snapshot is the per-frame read-only view handed to the render loop.
type Snapshot struct {
	Phase       Phase
	Epoch       uint64
	FEN         string
	Status      game.Status
	Turn        nchess.Color
	PlayerColor nchess.Color
	Ply         int
	MovesSAN    []string
	LastMove    game.Move
	HasLastMove bool
	LastError   string
}

type Controller struct {
	g      *game.Game
	ch     engineio.Channel
	mover  MoveRequester
	logger *zap.Logger
	store  session.Store

	playerColor nchess.Color
	sessionUUID string
	startedAt   time.Time
	engineID    string
	variantID   string

	phase   Phase
	epoch   uint64
	handle  engineio.Handle
	lastErr *engineio.Failure
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithStore enables crash-safe autosave of the in-progress game.
func WithStore(s session.Store) Option {
	return func(c *Controller) { c.store = s }
}

func WithPlayerColor(col nchess.Color) Option {
	return func(c *Controller) { c.playerColor = col }
}

// WithSessionMeta records which engine variant the game is played against, so
// a resumed session can be matched back to it.
func WithSessionMeta(engineID, variantID string) Option {
	return func(c *Controller) {
		c.engineID = engineID
		c.variantID = variantID
	}
}

func NewController(g *game.Game, ch engineio.Channel, mover MoveRequester, opts ...Option) *Controller {
	c := &Controller{
		g:           g,
		ch:          ch,
		mover:       mover,
		logger:      zap.NewNop(),
		playerColor: nchess.White,
		sessionUUID: uuid.NewString(),
		startedAt:   time.Now(),
		phase:       AwaitingHuman,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitHumanMove applies a validated human move. Illegal moves are rejected
// before any state mutation. On success, if the game goes on, the engine
// request for the reply ply is issued immediately.
func (c *Controller) SubmitHumanMove(m game.Move) error {
	return c.submit(func() (game.Status, error) { return c.g.Apply(m) })
}

// SubmitHumanNotation accepts SAN with UCI fallback, the way the move is
// typically typed.
func (c *Controller) SubmitHumanNotation(text string) error {
	return c.submit(func() (game.Status, error) {
		status, err := c.g.ApplySAN(text)
		if errors.Is(err, game.ErrIllegalMove) {
			return c.g.ApplyUCI(text)
		}
		return status, err
	})
}

func (c *Controller) submit(apply func() (game.Status, error)) error {
	switch c.phase {
	case RequestInFlight:
		return ErrBusy
	case GameOver:
		return ErrGameOver
	}
	if c.g.Turn() != c.playerColor {
		return ErrNotYourTurn
	}

	status, err := apply()
	if err != nil {
		return err
	}
	c.lastErr = nil
	c.autosave()
	if status.Terminal() {
		c.finish(status)
		return nil
	}
	c.requestEngineMove()
	return nil
}

// Tick polls the outstanding engine request, if any. It is called once per
// frame and never blocks.
func (c *Controller) Tick() {
	if c.phase != RequestInFlight {
		return
	}
	reply, ok := c.ch.Poll(c.handle)
	if !ok {
		return
	}
	if reply.Epoch != c.epoch {
		// Defensive: the controller only ever polls its newest handle, so a
		// mismatched epoch should be unreachable. Discard without surfacing.
		c.logger.Debug("discarding stale engine reply",
			zap.Uint64("reply_epoch", reply.Epoch),
			zap.Uint64("current_epoch", c.epoch),
		)
		return
	}
	c.handle = engineio.Handle{}

	if reply.Failure != nil {
		c.failEpisode(reply.Failure)
		return
	}

	status, err := c.g.ApplySAN(reply.Resp.MoveSAN)
	if err != nil {
		// The client already legality-checks replies against the snapshot, so
		// this only fires if the backend and the snapshot disagree.
		c.failEpisode(&engineio.Failure{Kind: engineio.IllegalEngineMove, Err: err})
		return
	}

	c.logger.Info("engine move applied",
		zap.Uint64("epoch", reply.Epoch),
		zap.String("move_san", reply.Resp.MoveSAN),
		zap.Int("ply", c.g.Ply()),
	)
	c.autosave()
	if status.Terminal() {
		c.finish(status)
		return
	}
	c.phase = AwaitingHuman
}

func (c *Controller) failEpisode(f *engineio.Failure) {
	c.logger.Warn("engine request failed",
		zap.String("kind", f.Kind.String()),
		zap.Error(f.Err),
		zap.Uint64("epoch", c.epoch),
	)
	c.lastErr = f
	c.phase = AwaitingHuman
}

func (c *Controller) finish(status game.Status) {
	c.phase = GameOver
	c.logger.Info("game over",
		zap.String("status", status.Kind.String()),
		zap.Int("ply", c.g.Ply()),
	)
	if c.store != nil {
		if err := c.store.Clear(context.Background()); err != nil {
			c.logger.Warn("failed to clear finished session", zap.Error(err))
		}
	}
}

// requestEngineMove snapshots the position, advances the epoch and hands the
// request to the channel. The epoch is monotonic for the lifetime of the
// controller; it is never reset, not even by NewGame.
func (c *Controller) requestEngineMove() {
	c.epoch++
	c.lastErr = nil
	fen := c.g.FEN()
	c.handle = c.dispatch(fen)
	c.phase = RequestInFlight
	c.logger.Debug("engine request issued",
		zap.Uint64("epoch", c.epoch),
		zap.String("fen", fen),
	)
}

func (c *Controller) dispatch(fen string) engineio.Handle {
	if ss, ok := c.ch.(stepSender); ok {
		if sr, ok := c.mover.(StepRequester); ok {
			return ss.SendStepper(sr.RequestMoveStepper(fen, c.epoch))
		}
	}
	return c.ch.Send(c.mover.RequestMove(fen, c.epoch))
}

// NewGame resets the board and abandons any outstanding request. Valid from
// every phase, including GameOver.
func (c *Controller) NewGame() {
	c.abandonInflight()
	c.g.Reset()
	c.lastErr = nil
	c.sessionUUID = uuid.NewString()
	c.startedAt = time.Now()
	c.phase = AwaitingHuman
	if c.store != nil {
		if err := c.store.Clear(context.Background()); err != nil {
			c.logger.Warn("failed to clear session on new game", zap.Error(err))
		}
	}
	if c.g.Turn() != c.playerColor {
		// Playing black: the engine opens.
		c.requestEngineMove()
	}
}

// RetryEngine re-issues the engine request after a failed episode, with a
// fresh epoch and an unchanged position.
func (c *Controller) RetryEngine() error {
	if c.phase != AwaitingHuman {
		return ErrBusy
	}
	if c.g.Turn() == c.playerColor {
		return ErrNotYourTurn
	}
	c.requestEngineMove()
	return nil
}

// Resign concedes the game. An in-flight request is abandoned; its reply can
// no longer be polled out.
func (c *Controller) Resign() error {
	if c.phase == GameOver {
		return ErrGameOver
	}
	c.abandonInflight()
	status := c.g.Resign(c.playerColor)
	c.finish(status)
	return nil
}

// Undo takes back the last full move so it is the human's turn again.
func (c *Controller) Undo() error {
	if c.phase != AwaitingHuman {
		return ErrBusy
	}
	n := 2
	if c.g.Turn() != c.playerColor {
		// A failed engine episode leaves the human's ply as the last one.
		n = 1
	}
	if c.g.Ply() < n {
		return ErrNoUndo
	}
	if err := c.g.TrimPlies(n); err != nil {
		return err
	}
	c.lastErr = nil
	c.autosave()
	return nil
}

// Restore resumes a stored session. The stored player color is adopted, and a
// snapshot recorded against a different engine variant is refused rather than
// replayed against the wrong opponent. If it is the engine's turn after the
// replay, the pending request is re-issued under a fresh epoch.
func (c *Controller) Restore(snap *session.Snapshot) error {
	if snap == nil {
		return session.ErrNotFound
	}
	if snap.EngineID != "" && c.engineID != "" && snap.EngineID != c.engineID {
		return fmt.Errorf("%w: stored engine %s, configured %s", ErrSessionMismatch, snap.EngineID, c.engineID)
	}
	if snap.VariantID != "" && c.variantID != "" && snap.VariantID != c.variantID {
		return fmt.Errorf("%w: stored variant %s, configured %s", ErrSessionMismatch, snap.VariantID, c.variantID)
	}
	if err := c.g.Restore(snap.MovesUCI); err != nil {
		return err
	}
	if col, ok := game.ParseColor(snap.PlayerColor); ok {
		c.playerColor = col
	}
	c.sessionUUID = snap.SessionUUID
	c.startedAt = snap.StartedAt
	c.lastErr = nil
	if c.g.Status().Terminal() {
		c.phase = GameOver
		return nil
	}
	c.phase = AwaitingHuman
	if c.g.Turn() != c.playerColor {
		c.requestEngineMove()
	}
	return nil
}

// Snapshot returns the read-only view for the current frame.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:       c.phase,
		Epoch:       c.epoch,
		FEN:         c.g.FEN(),
		Status:      c.g.Status(),
		Turn:        c.g.Turn(),
		PlayerColor: c.playerColor,
		Ply:         c.g.Ply(),
		MovesSAN:    c.g.MovesSAN(),
	}
	if last, ok := c.g.LastMove(); ok {
		snap.LastMove = last
		snap.HasLastMove = true
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

// LegalMoves exposes the current legal-move set so the UI never offers an
// illegal destination.
func (c *Controller) LegalMoves() []game.Move {
	if c.phase != AwaitingHuman || c.g.Turn() != c.playerColor {
		return nil
	}
	return c.g.LegalMoves()
}

func (c *Controller) abandonInflight() {
	if c.phase == RequestInFlight && c.handle.Valid() {
		c.ch.Abandon(c.handle)
		c.handle = engineio.Handle{}
	}
}

func (c *Controller) autosave() {
	if c.store == nil {
		return
	}
	snap := &session.Snapshot{
		SessionUUID: c.sessionUUID,
		PlayerColor: game.ColorName(c.playerColor),
		EngineID:    c.engineID,
		VariantID:   c.variantID,
		MovesUCI:    c.g.MovesUCI(),
		StartedAt:   c.startedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.Save(ctx, snap); err != nil {
		c.logger.Warn("failed to autosave session", zap.Error(err))
	}
}
