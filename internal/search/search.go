// Package search delegates search requests to the external search module.
package search

import (
	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/bus"
)

// Dispatcher forwards search commands over the launcher bus. The search
// module itself runs out of process; this side only requests and cancels.
type Dispatcher struct {
	bridge *bus.Bridge
	logger *zap.Logger
}

func NewDispatcher(bridge *bus.Bridge, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		bridge: bridge,
		logger: logger,
	}
}

func (d *Dispatcher) Request(query string) {
	if err := d.bridge.Send(bus.SignalSearchRequested, query); err != nil {
		d.logger.Error("Failed to request search", zap.Error(err))
	}
}

func (d *Dispatcher) Cancel() {
	if err := d.bridge.Send(bus.SignalSearchCancelled); err != nil {
		d.logger.Error("Failed to cancel search", zap.Error(err))
	}
}
