// Package coordinator reconciles the home-screen input sources (preference
// streams, location updates, media sessions, the launcher bus and the widget
// store) into one observable view state and exposes the command surface the
// renderer drives.
package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/bus"
	"github.com/kennethnym/SpotlightLauncher/internal/location"
	"github.com/kennethnym/SpotlightLauncher/internal/mediasess"
	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/state"
	"github.com/kennethnym/SpotlightLauncher/internal/weather"
	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

// Permissions reports runtime permission state. Both can change outside the
// settings flow, so they are re-read on every decision instead of cached.
type Permissions interface {
	LocationGranted() bool
	MediaListenerGranted() bool
}

// SearchDispatcher hands queries to the external search module.
type SearchDispatcher interface {
	Request(query string)
	Cancel()
}

// Deps are the collaborators the coordinator orchestrates.
type Deps struct {
	Prefs    *prefs.Store
	Widgets  widgets.Store
	Weather  weather.Service
	Location *location.Manager
	Media    mediasess.Registry
	Perms    Permissions
	Search   SearchDispatcher
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Coordinator owns two task scopes: the primary scope spans its whole
// lifetime, the weather scope only the stretches during which weather
// display is enabled. The weather scope is cancelled and recreated on every
// enable cycle so nothing from a previous cycle can resurrect.
type Coordinator struct {
	deps   Deps
	logger *zap.Logger
	view   *state.ViewState

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	weatherCtx    context.Context
	weatherCancel context.CancelFunc
	checkTask     *checkTask

	liveCheckTasks atomic.Int32

	busHandler bus.Handler
}

func New(ctx context.Context, deps Deps) *Coordinator {
	ctx, cancel := context.WithCancel(ctx)
	return &Coordinator{
		deps:   deps,
		logger: deps.Logger,
		view:   state.NewViewState(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// View exposes the observable home-screen state.
func (c *Coordinator) View() *state.ViewState {
	return c.view
}

// Start snapshots the widget list and opens one independent, long-lived
// subscription per input source. Weather initialization runs once from the
// current show-weather value; later toggles are handled by a primary-scope
// watcher.
func (c *Coordinator) Start() error {
	c.logger.Info("Starting home-screen coordinator")

	c.publishWidgets()

	go c.watchPref(c.ctx, prefs.KeyUse24HrClock, func(p prefs.Prefs) {
		c.view.Use24HrClock.Publish(p.Use24HrClock)
	})
	go c.watchPref(c.ctx, prefs.KeyClockSize, func(p prefs.Prefs) {
		c.view.ClockSize.Publish(p.ClockSize)
	})
	go c.watchPref(c.ctx, prefs.KeySearchOrder, func(p prefs.Prefs) {
		c.view.SearchOrder.Publish(p.SearchOrder)
	})
	go c.watchPref(c.ctx, prefs.KeyMediaControl, func(p prefs.Prefs) {
		c.applyMediaState(p.MediaControl)
	})

	c.busHandler = c.handleBusEvent
	c.deps.Bus.OnEvent(c.busHandler)

	c.deps.Widgets.OnChange(c.publishWidgets)

	cur := c.deps.Prefs.Get()
	if cur.ShowWeather {
		c.openWeatherScope()
		c.initWeather(cur)
	} else {
		c.view.Weather.Publish(nil)
	}
	go c.watchPrefChanges(c.ctx, prefs.KeyShowWeather, c.handleShowWeather)

	return nil
}

// Close releases every owned resource: the weather scope (including OS
// location updates), the media listener and all primary-scope subscriptions.
func (c *Coordinator) Close() {
	c.logger.Info("Closing home-screen coordinator")

	c.closeWeatherScope()
	c.deps.Media.RemoveListener()
	if c.busHandler != nil {
		c.deps.Bus.RemoveEventHandler(c.busHandler)
	}
	c.cancel()
}

func (c *Coordinator) handleBusEvent(ctx context.Context, event any) {
	switch ev := event.(type) {
	case bus.WidgetConfigChanged:
		c.RefreshWidgets()
	case bus.HostWidgetAdded:
		c.view.AddedHostWidget.Publish(&widgets.HostAddition{
			Widget:   ev.Widget,
			Provider: ev.Provider,
		})
		c.RefreshWidgets()
	}
}

// watchPref applies every emission of the stream, including the replayed
// current value.
func (c *Coordinator) watchPref(ctx context.Context, key prefs.Key, apply func(prefs.Prefs)) {
	ch, cancel := c.deps.Prefs.Watch(key)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			apply(p)
		}
	}
}

// watchPrefChanges is watchPref minus the replayed current value: the
// handler only reacts to changes made after subscription.
func (c *Coordinator) watchPrefChanges(ctx context.Context, key prefs.Key, apply func(prefs.Prefs)) {
	ch, cancel := c.deps.Prefs.Watch(key)
	defer cancel()

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			if first {
				first = false
				continue
			}
			apply(p)
		}
	}
}
