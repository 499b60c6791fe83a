package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"excaliview/internal/codec"
)

// Host is the desktop side of the link. It holds requests until the surface
// reports it is initialized, then matches save responses to their callers by
// nonce.
type Host struct {
	out    Poster
	in     Listener
	logger *slog.Logger

	mu       sync.Mutex
	pending  map[string]chan SaveResponse
	queue    []Message
	flushing bool
	ready    bool
	closed   bool

	readyCh chan struct{}
	done    chan struct{}
}

// NewHost wires a host to its outbound (host → surface) and inbound
// (surface → host) channels. Call Run to start receiving.
func NewHost(out Poster, in Listener, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{
		out:     out,
		in:      in,
		logger:  logger,
		pending: make(map[string]chan SaveResponse),
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Ready is closed when the surface has sent its initialized signal.
func (h *Host) Ready() <-chan struct{} {
	return h.readyCh
}

// Run receives messages from the surface until ctx is done or the inbound
// channel closes. Pending saves fail with ErrClosed when it returns.
func (h *Host) Run(ctx context.Context) error {
	defer h.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case m, ok := <-h.in.Listen():
			if !ok {
				return nil
			}
			h.dispatch(ctx, m)
		}
	}
}

func (h *Host) dispatch(ctx context.Context, m Message) {
	switch m.Kind {
	case KindInitialized:
		h.markReady(ctx)
	case KindSaveResponse:
		var resp SaveResponse
		if err := json.Unmarshal(m.Body, &resp); err != nil {
			h.logger.Error("bad save response", "error", err)
			return
		}
		if resp.Nonce == "" {
			resp.Nonce = m.Nonce
		}
		h.resolve(resp)
	default:
		h.logger.Warn("unexpected message from surface", "kind", m.Kind)
	}
}

// markReady starts flushing queued requests off the Run goroutine, which
// must keep draining responses meanwhile. Sends keep queueing until the
// queue is empty.
func (h *Host) markReady(ctx context.Context) {
	h.mu.Lock()
	if h.ready || h.flushing {
		h.mu.Unlock()
		h.logger.Debug("duplicate initialized signal ignored")
		return
	}
	h.flushing = true
	h.mu.Unlock()

	go h.flush(ctx)
}

func (h *Host) flush(ctx context.Context) {
	flushed := 0
	for {
		h.mu.Lock()
		if h.closed {
			h.flushing = false
			h.mu.Unlock()
			return
		}
		batch := h.queue
		h.queue = nil
		if len(batch) == 0 {
			h.flushing = false
			h.ready = true
			close(h.readyCh)
			h.mu.Unlock()
			h.logger.Debug("surface initialized", "flushed", flushed)
			return
		}
		h.mu.Unlock()

		for _, m := range batch {
			if err := h.out.Post(ctx, m); err != nil {
				h.logger.Error("flush queued request", "kind", m.Kind, "error", err)
			}
		}
		flushed += len(batch)
	}
}

func (h *Host) resolve(resp SaveResponse) {
	h.mu.Lock()
	ch, ok := h.pending[resp.Nonce]
	delete(h.pending, resp.Nonce)
	h.mu.Unlock()

	if !ok {
		h.logger.Warn("save response with unknown nonce dropped", "nonce", resp.Nonce)
		return
	}
	ch <- resp
}

// send posts m now, or queues it while the surface is not ready or the
// backlog is still being flushed. Post runs outside the lock.
func (h *Host) send(ctx context.Context, m Message) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if !h.ready {
		h.queue = append(h.queue, m)
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()
	return h.out.Post(ctx, m)
}

// Save asks the surface to encode the live scene and waits for the matching
// response. An unrecognised format gets no response, so callers should pass
// a context they are prepared to cancel.
func (h *Host) Save(ctx context.Context, req SaveRequest) (codec.Payload, error) {
	nonce := uuid.New().String()
	m, err := newMessage(KindSaveRequest, nonce, req)
	if err != nil {
		return codec.Payload{}, err
	}

	ch := make(chan SaveResponse, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return codec.Payload{}, ErrClosed
	}
	h.pending[nonce] = ch
	h.mu.Unlock()

	if err := h.send(ctx, m); err != nil {
		h.forget(nonce)
		return codec.Payload{}, fmt.Errorf("post save request: %w", err)
	}
	h.logger.Debug("save requested", "nonce", nonce, "format", req.Format, "export", req.Export)

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return codec.Payload{}, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
		}
		if resp.Data == nil {
			return codec.Payload{}, fmt.Errorf("%w: empty save response", ErrRemote)
		}
		return *resp.Data, nil
	case <-ctx.Done():
		h.forget(nonce)
		return codec.Payload{}, ctx.Err()
	case <-h.done:
		return codec.Payload{}, ErrClosed
	}
}

// Load asks the surface to replace the live scene. No response is expected.
func (h *Host) Load(ctx context.Context, p codec.Payload) error {
	m, err := newMessage(KindLoadRequest, "", p)
	if err != nil {
		return err
	}
	if err := h.send(ctx, m); err != nil {
		return fmt.Errorf("post load request: %w", err)
	}
	return nil
}

func (h *Host) forget(nonce string) {
	h.mu.Lock()
	delete(h.pending, nonce)
	h.mu.Unlock()
}

// Pending returns the number of saves awaiting a response.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Close fails all pending saves and rejects further requests.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.pending = make(map[string]chan SaveResponse)
	h.queue = nil
	close(h.done)
}
