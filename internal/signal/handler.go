// Package signal turns SIGINT and SIGTERM into context cancellation for the
// zkdrop commands and remembers which signal stopped them.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages
package signal

import (
	"context"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
)

// Handler cancels its context on the first SIGINT or SIGTERM.
type Handler struct {
	ctx      context.Context //nolint:containedctx // the handler owns this context's lifetime
	cancel   context.CancelFunc
	sigChan  chan os.Signal
	done     chan struct{}
	fired    chan struct{}
	once     sync.Once
	stopOnce sync.Once

	mu       sync.Mutex
	received os.Signal
}

// NewHandler starts listening for SIGINT and SIGTERM.
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//	err := srv.Run(h.Context())
//	if sig := h.Received(); sig != nil {
//	    logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
//	}
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		done:    make(chan struct{}),
		fired:   make(chan struct{}),
	}

	ossignal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context is canceled by the first signal, by Stop, or by the parent.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted closes when a signal has been handled.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.fired
}

// Received returns the signal that canceled the context, or nil.
func (h *Handler) Received() os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.received
}

// Stop unregisters the handler and cancels its context.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		ossignal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

// handle records sig and cancels. Later signals are ignored.
func (h *Handler) handle(sig os.Signal) {
	h.once.Do(func() {
		h.mu.Lock()
		h.received = sig
		h.mu.Unlock()
		h.cancel()
		close(h.fired)
	})
}

func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case sig := <-h.sigChan:
			h.handle(sig)
		}
	}
}
