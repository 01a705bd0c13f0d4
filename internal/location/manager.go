package location

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/weather"
)

// Manager owns the remembered device location. Requesting updates without
// permission is a silent no-op. Continuous update callbacks only refresh the
// remembered location; fetch triggering stays with the caller's scheduling.
type Manager struct {
	mu       sync.Mutex
	src      Source
	granted  PermissionFunc
	logger   *zap.Logger
	current  *weather.LatLong
	listener Listener

	// gen invalidates callbacks from a superseded or stopped subscription,
	// so a stale in-flight callback cannot mutate the remembered location
	// after Stop returns.
	gen int
}

func NewManager(src Source, granted PermissionFunc, logger *zap.Logger) *Manager {
	return &Manager{
		src:     src,
		granted: granted,
		logger:  logger,
	}
}

// Request starts (or restarts) continuous location updates at the given
// interval. When a last-known location is available it is recorded and
// onFirst fires exactly once with it before the subscription begins.
func (m *Manager) Request(interval time.Duration, onFirst func(loc weather.LatLong)) {
	if !m.granted() {
		m.logger.Debug("Location permission not granted, skipping update request")
		return
	}

	provider, err := m.src.BestProvider()
	if err != nil {
		m.logger.Warn("No location provider available", zap.Error(err))
		return
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	prev := m.listener

	var first *weather.LatLong
	if loc, ok := m.src.LastKnown(provider); ok && loc != nil {
		known := *loc
		m.current = &known
		first = &known
	}

	listener := func(loc weather.LatLong) {
		m.mu.Lock()
		if m.gen == gen {
			update := loc
			m.current = &update
		}
		m.mu.Unlock()
	}
	m.listener = listener
	m.mu.Unlock()

	if prev != nil {
		m.src.Unsubscribe(prev)
	}

	if first != nil && onFirst != nil {
		onFirst(*first)
	}

	m.logger.Info("Requesting location updates",
		zap.String("provider", provider),
		zap.Duration("interval", interval))

	if err := m.src.Subscribe(provider, interval, listener); err != nil {
		m.logger.Warn("Failed to subscribe for location updates", zap.Error(err))
	}
}

// Stop unsubscribes synchronously. After Stop returns, no callback from the
// stopped subscription can mutate the remembered location.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.gen++
	listener := m.listener
	m.listener = nil
	m.mu.Unlock()

	if listener != nil {
		m.src.Unsubscribe(listener)
	}
}

// Current returns a copy of the remembered device location, or nil when none
// has been observed.
func (m *Manager) Current() *weather.LatLong {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	loc := *m.current
	return &loc
}

// Clear forgets the remembered device location.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}
