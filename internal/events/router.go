package events

import (
	"context"
	"fmt"
	"sync"
)

// Handler consumes routed events. Handlers run in registration order on the
// router goroutine; a panic or slow handler in one position must not stop
// the ones after it, so each call is isolated.
type Handler interface {
	Name() string
	HandleEvent(ctx context.Context, env Envelope)
}

// Logger is the minimal logging interface the router needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type inbound struct {
	topic   string
	payload []byte
}

// Router parses, de-duplicates and fans out device events to its handlers
// in a fixed order. Messages enter through HandleMessage, which never
// blocks the transport callback; processing happens on the router's own
// goroutine.
type Router struct {
	dedup    *Deduper
	handlers []Handler
	logger   Logger

	in      chan inbound
	stopped chan struct{}
	once    sync.Once
}

// NewRouter creates a router fanning out to handlers in the given order.
func NewRouter(dedup *Deduper, handlers []Handler, buffer int, logger Logger) *Router {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{
		dedup:    dedup,
		handlers: handlers,
		logger:   logger,
		in:       make(chan inbound, buffer),
		stopped:  make(chan struct{}),
	}
}

// HandleMessage enqueues a raw bus message for processing. It matches the
// transport's handler signature and never blocks; when the queue is full
// the message is dropped with a warning.
func (r *Router) HandleMessage(topic string, payload []byte) {
	select {
	case r.in <- inbound{topic: topic, payload: payload}:
	default:
		r.logger.Warn("event queue full, dropping message", "topic", topic)
	}
}

// Start runs the routing loop until ctx is cancelled.
func (r *Router) Start(ctx context.Context) {
	go func() {
		defer close(r.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-r.in:
				r.process(ctx, msg.topic, msg.payload)
			}
		}
	}()
}

// Wait blocks until the routing loop has exited.
func (r *Router) Wait() {
	<-r.stopped
}

// process parses one message and runs the handler chain. Malformed input
// and duplicates are dropped here and never reach the handlers.
func (r *Router) process(ctx context.Context, topic string, payload []byte) {
	env, err := ParseEnvelope(topic, payload)
	if err != nil {
		r.logger.Warn("dropping malformed event", "topic", topic, "error", err)
		return
	}

	if r.dedup != nil && r.dedup.Seen(env.DeviceID, env.Sequence) {
		r.logger.Debug("dropping duplicate event",
			"device_id", env.DeviceID, "sequence", env.Sequence)
		return
	}

	for _, h := range r.handlers {
		r.dispatch(ctx, h, env)
	}
}

// dispatch runs one handler with panic isolation.
func (r *Router) dispatch(ctx context.Context, h Handler, env Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked",
				"handler", h.Name(), "device_id", env.DeviceID,
				"type", env.Type, "panic", fmt.Sprintf("%v", rec))
		}
	}()
	h.HandleEvent(ctx, env)
}
