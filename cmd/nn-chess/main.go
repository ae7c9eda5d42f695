package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/gmatiukhin/nn-chess-frontend/internal/boardimage"
	"github.com/gmatiukhin/nn-chess-frontend/internal/boardview"
	appcfg "github.com/gmatiukhin/nn-chess-frontend/internal/config"
	"github.com/gmatiukhin/nn-chess-frontend/internal/engineclient"
	"github.com/gmatiukhin/nn-chess-frontend/internal/engineio"
	"github.com/gmatiukhin/nn-chess-frontend/internal/game"
	"github.com/gmatiukhin/nn-chess-frontend/internal/obslog"
	"github.com/gmatiukhin/nn-chess-frontend/internal/session"
	"github.com/gmatiukhin/nn-chess-frontend/internal/turn"
	"github.com/gmatiukhin/nn-chess-frontend/pkg/enginedto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	client := engineclient.NewClient(cfg.EngineBaseURL, logger,
		engineclient.WithTimeout(cfg.RequestTimeout),
	)

	engineID, variant, err := resolveVariant(client, cfg)
	if err != nil {
		log.Fatalf("engine selection error: %v", err)
	}
	logger.Info("engine variant selected",
		zap.String("engine_id", engineID),
		zap.String("variant_id", variant.VariantID),
		zap.String("name", variant.Name),
	)

	var ch engineio.Channel
	if cfg.RequestMode == appcfg.ModeCoop {
		ch = engineio.NewCoopChannel()
	} else {
		ch = engineio.NewAsyncChannel()
	}

	var store session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err = session.NewRedisStore(cfg.RedisURL, cfg.Profile, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("session store error: %v", err)
		}
	} else {
		store = session.NewMemoryStore()
	}

	playerColor := nchess.White
	if cfg.PlayerColor == "black" {
		playerColor = nchess.Black
	}

	g := game.New()
	ctrl := turn.NewController(g, ch, client.Bind(variant),
		turn.WithLogger(logger),
		turn.WithStore(store),
		turn.WithPlayerColor(playerColor),
		turn.WithSessionMeta(engineID, variant.VariantID),
	)

	// Resume a crashed session, if one was left behind.
	if snap, err := store.Load(context.Background()); err == nil {
		if rerr := ctrl.Restore(snap); rerr != nil {
			logger.Warn("failed to resume stored session", zap.Error(rerr))
			ctrl.NewGame()
		} else {
			logger.Info("resumed stored session",
				zap.String("session_uuid", snap.SessionUUID),
				zap.Int("plies", len(snap.MovesUCI)),
			)
		}
	} else if !errors.Is(err, session.ErrNotFound) {
		logger.Warn("session load failed", zap.Error(err))
	} else if playerColor == nchess.Black {
		ctrl.NewGame()
	}

	if err := runUI(cfg, ctrl, g, playerColor); err != nil {
		log.Fatalf("ui error: %v", err)
	}
}

// resolveVariant picks the configured engine and variant from the directory,
// defaulting to the first engine and its best available variant.
func resolveVariant(client *engineclient.Client, cfg *appcfg.AppConfig) (string, enginedto.EngineVariant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dir, err := client.FetchDirectory(ctx)
	if err != nil {
		return "", enginedto.EngineVariant{}, err
	}
	if len(dir.Engines) == 0 {
		return "", enginedto.EngineVariant{}, fmt.Errorf("engine directory is empty")
	}

	ref := dir.Engines[0]
	if cfg.EngineID != "" {
		found := false
		for _, e := range dir.Engines {
			if e.EngineID == cfg.EngineID {
				ref, found = e, true
				break
			}
		}
		if !found {
			return "", enginedto.EngineVariant{}, fmt.Errorf("engine %q not in directory", cfg.EngineID)
		}
	}

	desc, err := client.FetchDescription(ctx, ref)
	if err != nil {
		return "", enginedto.EngineVariant{}, err
	}
	if cfg.VariantID != "" {
		for _, v := range desc.Variants {
			if v.VariantID == cfg.VariantID {
				return ref.EngineID, v, nil
			}
		}
		return "", enginedto.EngineVariant{}, fmt.Errorf("variant %q not offered by engine %s", cfg.VariantID, ref.EngineID)
	}
	if desc.BestAvailableVariant.GameURL == "" {
		return "", enginedto.EngineVariant{}, fmt.Errorf("engine %s offers no playable variant", ref.EngineID)
	}
	return ref.EngineID, desc.BestAvailableVariant, nil
}

func runUI(cfg *appcfg.AppConfig, ctrl *turn.Controller, g *game.Game, playerColor nchess.Color) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	quit := make(chan struct{})
	view := boardview.New(screen, boardview.Actions{
		Submit:  ctrl.SubmitHumanNotation,
		NewGame: ctrl.NewGame,
		Retry:   ctrl.RetryEngine,
		Resign:  ctrl.Resign,
		Undo:    ctrl.Undo,
		Export:  func() error { return exportBoard(cfg.ExportDir, g, playerColor) },
		Quit:    func() { close(quit) },
	})

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	frame := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer frame.Stop()

	for {
		select {
		case <-quit:
			return nil
		case ev := <-events:
			view.HandleEvent(ev)
		case <-frame.C:
			ctrl.Tick()
			view.Draw(ctrl.Snapshot(), g.Board())
		}
	}
}

func exportBoard(dir string, g *game.Game, playerColor nchess.Color) error {
	var highlight *boardimage.Highlight
	if last, ok := g.LastMove(); ok {
		highlight = &boardimage.Highlight{From: last.From, To: last.To}
	}
	data, err := boardimage.RenderPNG(g.Board(), highlight, playerColor == nchess.Black)
	if err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("board-%s.png", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	obslog.L().Info("board exported", zap.String("path", name))
	return nil
}
