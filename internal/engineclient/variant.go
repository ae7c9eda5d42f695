package engineclient

import (
	"github.com/gmatiukhin/nn-chess-frontend/internal/engineio"
	"github.com/gmatiukhin/nn-chess-frontend/pkg/enginedto"
)

// BoundVariant fixes the engine variant for a whole game, so callers only
// supply the position snapshot and the epoch.
type BoundVariant struct {
	client  *Client
	variant enginedto.EngineVariant
}

func (c *Client) Bind(variant enginedto.EngineVariant) *BoundVariant {
	return &BoundVariant{client: c, variant: variant}
}

func (b *BoundVariant) RequestMove(fen string, epoch uint64) engineio.Task {
	return b.client.MoveTask(b.variant, fen, epoch)
}

func (b *BoundVariant) RequestMoveStepper(fen string, epoch uint64) engineio.Stepper {
	return b.client.MoveStepper(b.variant, fen, epoch)
}

func (b *BoundVariant) Variant() enginedto.EngineVariant {
	return b.variant
}
