package dispatcher

import (
	"context"

	"github.com/garyjia/flow-forge/internal/domain/event"
)

// Handler reacts to a committed workflow event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo names a handler for logging
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
