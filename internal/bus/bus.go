// Package bus carries launcher-wide events between the settings surface and
// the home-screen coordinator.
package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

// WidgetConfigChanged signals that the persisted widget configuration was
// rewritten out of process.
type WidgetConfigChanged struct{}

// HostWidgetAdded signals that a hosted widget was just placed, with the
// provider metadata the renderer needs for the one-shot notification.
type HostWidgetAdded struct {
	Widget   widgets.Descriptor
	Provider string
}

// Handler receives every published event and type-switches on the ones it
// cares about.
type Handler func(ctx context.Context, event any)

// Bus is the in-process publish/subscribe channel. Handlers run on their own
// goroutines so a slow handler cannot block the publisher or its peers.
type Bus struct {
	sync.Mutex

	ctx      context.Context
	logger   *zap.Logger
	handlers []Handler
}

func New(ctx context.Context, logger *zap.Logger) *Bus {
	return &Bus{
		ctx:      ctx,
		logger:   logger,
		handlers: []Handler{},
	}
}

func (b *Bus) OnEvent(handler Handler) {
	b.Lock()
	defer b.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) RemoveEventHandler(h Handler) {
	b.Lock()
	defer b.Unlock()

	for i, handler := range b.handlers {
		if fmt.Sprintf("%p", handler) == fmt.Sprintf("%p", h) {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every registered handler.
func (b *Bus) Publish(event any) {
	b.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.Unlock()

	b.logger.Debug("Publishing event", zap.Any("event", event))

	for _, handler := range handlers {
		go func(h Handler) {
			h(b.ctx, event)
		}(handler)
	}
}
