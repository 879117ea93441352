// Package bus is the message channel between the UI surfaces, the
// orchestrator, and page-context agents. It is asynchronous and
// best-effort: one request produces exactly one response or a timeout,
// and delivery is not guaranteed when the target context is gone.
//
// Two halves live here:
//
//   - Dispatcher: a typed dispatch table for inbound messages
//     (UI → orchestrator), keyed by message type. Handlers are async by
//     construction — they receive a context and return a value or an
//     error, and the dispatcher wraps either into the response envelope.
//   - Send: the outbound half (orchestrator → agent). It races the
//     delivery against a timer; whichever settles first wins and the
//     other branch is abandoned. No cancellation reaches the agent —
//     abandoned work completes remotely and its result is discarded.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Message types carried over the bus. The direction is fixed per type.
const (
	TypePing            = "PING"              // orchestrator → agent
	TypeExtractPageInfo = "EXTRACT_PAGE_INFO" // orchestrator → agent, UI → orchestrator
	TypeCapturePageV2   = "CAPTURE_PAGE_V2"   // orchestrator → agent
	TypeRecommendTags   = "RECOMMEND_TAGS"    // UI → orchestrator
	TypeSaveBookmark    = "SAVE_BOOKMARK"     // UI → orchestrator
	TypeCreateSnapshot  = "CREATE_SNAPSHOT"   // UI → orchestrator
	TypeGetConfig       = "GET_CONFIG"        // UI → orchestrator
)

// Message is one request on the bus.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is the uniform response shape for every message type.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// OK wraps a value into a success envelope.
func OK(v any) Envelope {
	data, err := json.Marshal(v)
	if err != nil {
		return Fail(fmt.Errorf("bus: marshal response: %w", err))
	}
	return Envelope{Success: true, Data: data}
}

// Fail wraps an error into a failure envelope.
func Fail(err error) Envelope {
	return Envelope{Success: false, Error: err.Error()}
}

// Handler processes one typed message. The returned value is marshalled
// into the envelope's data field. Handlers must honour ctx cancellation.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Middleware wraps a Handler with cross-cutting behaviour.
type Middleware func(Handler) Handler

// WithTimeout bounds a handler with a per-call deadline. A zero d
// disables the bound.
func WithTimeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload json.RawMessage) (any, error) {
			if d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			return next(ctx, payload)
		}
	}
}

// Dispatcher routes inbound messages to registered handlers by type.
// Thread-safe: registration and dispatch may interleave.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register installs a handler for a message type, applying middleware
// outermost-first. Registering the same type twice replaces the handler.
func (d *Dispatcher) Register(msgType string, h Handler, mw ...Middleware) {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	d.mu.Lock()
	d.handlers[msgType] = h
	d.mu.Unlock()
}

// Dispatch routes one message and always produces an envelope. An
// unregistered type is a fatal protocol error surfaced to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Envelope {
	d.mu.RLock()
	h, ok := d.handlers[msg.Type]
	d.mu.RUnlock()

	if !ok {
		err := &ErrUnknownType{Type: msg.Type}
		d.logger.WarnContext(ctx, "bus: unknown message type", "type", msg.Type)
		return Fail(err)
	}

	v, err := h(ctx, msg.Payload)
	if err != nil {
		d.logger.WarnContext(ctx, "bus: handler failed",
			"type", msg.Type, "error", err)
		return Fail(err)
	}
	return OK(v)
}

// Target is a remote execution context the bus can deliver to. An
// implementation returns *ErrDeliveryFailure when the context no longer
// exists (closed page, never-injected agent) so callers can tell a dead
// target from a slow one.
type Target interface {
	// Deliver sends one request and blocks until the response arrives
	// or ctx is done. Exactly one response per request.
	Deliver(ctx context.Context, msgType string, payload []byte) ([]byte, error)
}

// Send delivers a message to a target with a hard timeout. The delivery
// runs in its own goroutine and races the timer; if the timer wins, Send
// returns *ErrTimeout and the in-flight delivery is abandoned — its
// eventual result is drained and discarded, never observed by the
// caller. The abandoned branch cannot mutate caller state because
// results only flow through the single channel read below.
func Send(ctx context.Context, target Target, msgType string, payload []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data []byte
		err  error
	}
	// Buffered so the losing branch never blocks on an abandoned send.
	ch := make(chan outcome, 1)

	go func() {
		data, err := target.Deliver(ctx, msgType, payload)
		ch <- outcome{data: data, err: err}
	}()

	select {
	case out := <-ch:
		return out.data, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ErrTimeout{Type: msgType, Timeout: timeout}
		}
		return nil, ctx.Err()
	}
}
