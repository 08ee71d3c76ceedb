package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/flow-forge/internal/domain/event"
)

// Dispatcher routes workflow events to subscribed handlers. Events are only
// dispatched once the call that produced them has committed, so a handler
// failure never affects persisted workflow state.
type Dispatcher interface {
	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch runs handlers synchronously and returns the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs handlers in the background; errors are logged
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Handlers returns the handler names registered for an event type
	Handlers(eventType event.Type) []string

	// Close waits for in-flight async handlers and rejects further dispatch
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	// closed and wg.Add are guarded by mu so Close never races a late dispatch
	wg     sync.WaitGroup
	closed bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a named handler for an event type
func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})

	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

// Dispatch runs handlers synchronously and returns the first error
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return fmt.Errorf("dispatcher is closed")
	}
	infos := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.mu.RUnlock()

	for _, info := range infos {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			d.logError("Handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"workflow_id", evt.WorkflowID,
				"handler_name", info.Name,
				"error", err,
			)
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}
	return nil
}

// DispatchAsync runs handlers in the background; errors are logged
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.logError("Cannot dispatch async event, dispatcher is closed",
			"event_type", evt.Type,
			"event_id", evt.ID,
		)
		return
	}
	infos := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.wg.Add(len(infos))
	d.mu.RUnlock()

	// Handlers outlive the request that triggered them.
	ctx = context.WithoutCancel(ctx)

	for _, info := range infos {
		go func(h HandlerInfo) {
			defer d.wg.Done()
			if err := d.safeExecute(ctx, evt, h); err != nil {
				d.logError("Async handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"workflow_id", evt.WorkflowID,
					"handler_name", h.Name,
					"error", err,
				)
			}
		}(info)
	}
}

// Handlers returns the handler names registered for an event type
func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	infos := d.snapshot(eventType)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// Close waits for in-flight async handlers and rejects further dispatch
func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.mu.Unlock()

	d.logInfo("Closing dispatcher, waiting for async handlers")
	d.wg.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

func (d *eventDispatcher) snapshot(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo(nil), d.handlers[eventType]...)
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return info.Handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, keysAndValues...)
	}
}

func (d *eventDispatcher) logError(msg string, keysAndValues ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, keysAndValues...)
	}
}
