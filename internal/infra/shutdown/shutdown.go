package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Handler coordinates signal-driven cancellation and shutdown hooks.
type Handler struct {
	timeout time.Duration
	hooks   []func(context.Context) error
	signals []os.Signal
	mu      sync.Mutex
	once    sync.Once
	err     error
	caught  chan os.Signal
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		hooks:   make([]func(context.Context) error, 0),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		caught:  make(chan os.Signal, 1),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// WithSignals returns a context canceled by the first termination signal.
// Later signals are swallowed until stop is called. The first caught
// signal is also reported on Signals().
func (h *Handler) WithSignals(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, h.signals...)

	quit := make(chan struct{})
	go func() {
		first := true
		for {
			select {
			case sig := <-sigCh:
				if first {
					first = false
					select {
					case h.caught <- sig:
					default:
					}
					cancel()
				}
			case <-quit:
				return
			}
		}
	}()

	var stopOnce sync.Once
	return ctx, func() {
		stopOnce.Do(func() {
			signal.Stop(sigCh)
			close(quit)
			cancel()
		})
	}
}

// Signals reports the first signal caught by WithSignals.
func (h *Handler) Signals() <-chan os.Signal {
	return h.caught
}

// Shutdown executes hooks once in reverse order under the configured
// timeout and returns the last hook error.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := make([]func(context.Context) error, len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](ctx); err != nil {
				h.err = err
			}
		}
	})
	return h.err
}
