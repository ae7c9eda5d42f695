// Package engineio carries engine move requests across the boundary between
// the render loop and the network. Both implementations satisfy the same
// poll-based contract: a reply is delivered at most once per handle, polling
// never blocks, and polling an already-delivered or abandoned handle yields
// nothing. Stale replies are neutralized by the caller's epoch check, not by
// the channel.
package engineio

import (
	"context"
	"fmt"

	"github.com/gmatiukhin/nn-chess-frontend/pkg/enginedto"
)

// FailureKind classifies engine-side request failures.
type FailureKind int

const (
	// NetworkError covers no response, timeouts, refused connections and
	// server-side 5xx failures.
	NetworkError FailureKind = iota
	// ProtocolError covers malformed bodies and unexpected statuses.
	ProtocolError
	// IllegalEngineMove marks a backend reply that proposed a move which is
	// not legal in the position it was asked about. Such a move is never
	// applied.
	IllegalEngineMove
)

func (k FailureKind) String() string {
	switch k {
	case NetworkError:
		return "network_error"
	case ProtocolError:
		return "protocol_error"
	case IllegalEngineMove:
		return "illegal_engine_move"
	default:
		return "unknown"
	}
}

// Failure is the error half of a Reply.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

// Reply is the single result of one engine request. Either Resp carries the
// engine's move or Failure is set. Epoch is echoed from the request and is the
// sole correctness mechanism against stale replies.
type Reply struct {
	Epoch   uint64
	Resp    enginedto.GameMoveResponse
	Failure *Failure
}

// Task performs one engine request to completion. The threaded channel runs it
// on its own goroutine with a cancellable context; the cooperative channel
// runs it inline on the first poll and never cancels it. Sliceable work goes
// through Stepper instead.
type Task func(ctx context.Context) Reply

// Handle identifies one outstanding request. The zero Handle is invalid.
type Handle struct {
	id uint64
}

// Valid reports whether the handle refers to a sent request.
func (h Handle) Valid() bool { return h.id != 0 }

// Channel is the request/response capability shared by both scheduling models.
type Channel interface {
	// Send starts the task and returns immediately.
	Send(task Task) Handle
	// Poll is non-blocking. It returns (reply, true) exactly once when the
	// task has finished; afterwards, and for unknown or abandoned handles, it
	// returns (Reply{}, false).
	Poll(h Handle) (Reply, bool)
	// Abandon declares the handle's reply irrelevant. Cancellation of the
	// underlying work is best-effort and implementation-specific.
	Abandon(h Handle)
}
