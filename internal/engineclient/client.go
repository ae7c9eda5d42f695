// Package engineclient talks to the remote engine service: a directory of
// engines at the base URL, a description document per engine, and one
// "compute next move" endpoint per variant.
package engineclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/gmatiukhin/nn-chess-frontend/internal/engineio"
	"github.com/gmatiukhin/nn-chess-frontend/pkg/enginedto"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

// WithTimeout caps every request. Zero means no client-side timeout: the move
// request may wait on the backend indefinitely and is only ever neutralized by
// the caller advancing its epoch.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &fasthttp.Client{MaxConnsPerHost: 8},
		logger:   logger,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchDirectory lists the engines the service offers.
func (c *Client) FetchDirectory(ctx context.Context) (*enginedto.EngineDirectory, error) {
	var dir enginedto.EngineDirectory
	if err := c.getJSON(ctx, c.baseURL+"/", &dir); err != nil {
		return nil, fmt.Errorf("fetch engine directory: %w", err)
	}
	return &dir, nil
}

// FetchDescription resolves an engine's entrypoint into its description and
// playable variants.
func (c *Client) FetchDescription(ctx context.Context, ref enginedto.EngineRef) (*enginedto.EngineDescription, error) {
	if strings.TrimSpace(ref.EntrypointURL) == "" {
		return nil, fmt.Errorf("engine %s has no entrypoint url", ref.EngineID)
	}
	var desc enginedto.EngineDescription
	if err := c.getJSON(ctx, ref.EntrypointURL, &desc); err != nil {
		return nil, fmt.Errorf("fetch engine description %s: %w", ref.EngineID, err)
	}
	return &desc, nil
}

// MoveTask builds the whole-call engine request for one position snapshot.
// The returned task posts the FEN to the variant's game URL, validates the
// reply move against the snapshot, and binds the reply to the epoch. It is
// issued through an engineio.Channel, never called inline.
func (c *Client) MoveTask(variant enginedto.EngineVariant, fen string, epoch uint64) engineio.Task {
	return func(ctx context.Context) engineio.Reply {
		status, body, err := c.postAbortable(ctx, variant.GameURL, enginedto.GameMoveRequest{FEN: fen})
		return c.moveReply(variant, fen, epoch, status, body, err)
	}
}

// MoveStepper is the sliceable form of the same request, for the cooperative
// channel. Each poll advances one phase: marshal the payload, perform the
// exchange, classify the outcome. The exchange phase blocks for at most the
// client's request timeout (or indefinitely when none is configured, same as
// the whole-call form).
func (c *Client) MoveStepper(variant enginedto.EngineVariant, fen string, epoch uint64) engineio.Stepper {
	return &moveStepper{c: c, variant: variant, fen: fen, epoch: epoch}
}

type moveStepper struct {
	c       *Client
	variant enginedto.EngineVariant
	fen     string
	epoch   uint64

	phase   int
	payload []byte
	status  int
	body    []byte
	err     error
}

func (s *moveStepper) Step(ctx context.Context) (engineio.Reply, bool) {
	switch s.phase {
	case 0:
		s.phase = 1
		payload, err := json.Marshal(enginedto.GameMoveRequest{FEN: s.fen})
		if err != nil {
			return engineio.Reply{Epoch: s.epoch, Failure: &engineio.Failure{
				Kind: engineio.ProtocolError,
				Err:  fmt.Errorf("marshal request: %w", err),
			}}, true
		}
		s.payload = payload
		return engineio.Reply{}, false
	case 1:
		s.phase = 2
		s.status, s.body, s.err = s.c.do(ctx, fasthttp.MethodPost, s.variant.GameURL, s.payload)
		return engineio.Reply{}, false
	default:
		return s.c.moveReply(s.variant, s.fen, s.epoch, s.status, s.body, s.err), true
	}
}

// moveReply classifies one finished move exchange into a Reply. Shared by the
// whole-call and the step-driven forms.
func (c *Client) moveReply(variant enginedto.EngineVariant, fen string, epoch uint64, status int, body []byte, err error) engineio.Reply {
	reply := engineio.Reply{Epoch: epoch}

	if err != nil {
		c.logger.Warn("engine move request failed",
			zap.Error(err),
			zap.Uint64("epoch", epoch),
			zap.String("variant", variant.VariantID),
		)
		reply.Failure = &engineio.Failure{Kind: engineio.NetworkError, Err: err}
		return reply
	}
	if status < 200 || status >= 300 {
		kind := engineio.ProtocolError
		if status >= 500 {
			kind = engineio.NetworkError
		}
		reply.Failure = &engineio.Failure{
			Kind: kind,
			Err:  fmt.Errorf("engine api error: status=%d body=%s", status, truncate(string(body), 512)),
		}
		return reply
	}

	var resp enginedto.GameMoveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		reply.Failure = &engineio.Failure{Kind: engineio.ProtocolError, Err: fmt.Errorf("decode move response: %w", err)}
		return reply
	}
	if strings.TrimSpace(resp.MoveSAN) == "" {
		reply.Failure = &engineio.Failure{Kind: engineio.ProtocolError, Err: fmt.Errorf("empty move in response")}
		return reply
	}
	if err := checkMoveLegal(fen, resp.MoveSAN); err != nil {
		reply.Failure = &engineio.Failure{Kind: engineio.IllegalEngineMove, Err: err}
		return reply
	}
	reply.Resp = resp
	return reply
}

// checkMoveLegal verifies the engine's SAN against the position it was asked
// about. A reply that fails here must never reach the board.
func checkMoveLegal(fen, san string) error {
	fenOpt, err := nchess.FEN(fen)
	if err != nil {
		return fmt.Errorf("snapshot fen invalid: %w", err)
	}
	snapshot := nchess.NewGame(fenOpt)
	if _, err := (nchess.AlgebraicNotation{}).Decode(snapshot.Position(), strings.TrimSpace(san)); err != nil {
		return fmt.Errorf("move %q not legal in position %q: %w", san, fen, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status, body, err := c.do(ctx, fasthttp.MethodGet, url, nil)
		switch {
		case err != nil:
			lastErr = fmt.Errorf("request failed: %w", err)
		case status < 200 || status >= 300:
			lastErr = fmt.Errorf("engine api error: status=%d body=%s", status, truncate(string(body), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
		default:
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		if attempt < attempts {
			if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

// postAbortable races the request against ctx cancellation so an abandoned
// threaded-channel handle stops waiting immediately. The transfer itself may
// still complete in the background; its reply is discarded by the caller.
func (c *Client) postAbortable(ctx context.Context, url string, in any) (int, []byte, error) {
	type result struct {
		status int
		body   []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, body, err := c.post(ctx, url, in)
		done <- result{status: status, body: body, err: err}
	}()
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case r := <-done:
		return r.status, r.body, r.err
	}
}

func (c *Client) post(ctx context.Context, url string, in any) (int, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, fasthttp.MethodPost, url, payload)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	if dl, ok := c.deadline(ctx); ok {
		if err := c.http.DoDeadline(req, resp, dl); err != nil {
			return 0, nil, err
		}
	} else {
		if err := c.http.Do(req, resp); err != nil {
			return 0, nil, err
		}
	}

	out := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), out, nil
}

func (c *Client) deadline(ctx context.Context) (time.Time, bool) {
	ctxDL, hasCtxDL := ctx.Deadline()
	if c.defaultTimeout <= 0 {
		return ctxDL, hasCtxDL
	}
	clientDL := time.Now().Add(c.defaultTimeout)
	if hasCtxDL && ctxDL.Before(clientDL) {
		return ctxDL, true
	}
	return clientDL, true
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
