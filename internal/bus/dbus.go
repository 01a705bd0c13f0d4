package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

// Member names one signal on the launcher D-Bus interface.
type Member string

const (
	SignalWidgetConfigChanged Member = "widget_config_changed"
	SignalHostWidgetAdded     Member = "host_widget_added"
	SignalSearchRequested     Member = "search_requested"
	SignalSearchCancelled     Member = "search_cancelled"

	busInterface = "com.spotlightlauncher.homescreen"
	busPath      = dbus.ObjectPath("/com/spotlightlauncher/homescreen")
	busNamespace = dbus.ObjectPath("/com/spotlightlauncher")
)

func (m Member) String() string {
	return string(m)
}

func (m Member) name() string {
	return busInterface + "." + string(m)
}

// Bridge translates launcher D-Bus signals into in-process bus events and
// emits outbound signals (used by the search dispatcher).
type Bridge struct {
	sync.Mutex

	ctx      context.Context
	bus      *Bus
	conn     *dbus.Conn
	sigChan  chan *dbus.Signal
	doneChan chan struct{}
	logger   *zap.Logger
}

func NewBridge(ctx context.Context, b *Bus, logger *zap.Logger) *Bridge {
	return &Bridge{
		ctx:      ctx,
		bus:      b,
		sigChan:  make(chan *dbus.Signal, 10),
		doneChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start connects to the session bus with exponential backoff and begins
// forwarding launcher signals onto the in-process bus.
func (b *Bridge) Start() error {
	b.logger.Info("Starting launcher bus bridge")

	var conn *dbus.Conn
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.Multiplier = 2
	bo.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		var err error
		conn, err = dbus.SessionBus()
		return err
	}, bo)
	if err != nil {
		return err
	}

	err = conn.AddMatchSignalContext(b.ctx,
		dbus.WithMatchPathNamespace(busNamespace),
	)
	if err != nil {
		conn.Close()
		return err
	}

	b.Lock()
	b.conn = conn
	b.Unlock()

	conn.Signal(b.sigChan)
	b.background()

	return nil
}

func (b *Bridge) background() {
	go func() {
		b.logger.Info("Bus bridge background goroutine started")
		for {
			select {
			case <-b.ctx.Done():
				b.logger.Info("Context cancelled, stopping bus bridge")
				b.Stop()
				return
			case <-b.doneChan:
				b.logger.Info("Bus bridge stopped")
				return
			case sig := <-b.sigChan:
				if sig == nil {
					b.logger.Warn("Received nil signal")
					continue
				}
				if err := b.handleSignal(sig); err != nil {
					b.logger.Error("Failed to handle signal", zap.Error(err))
				}
			}
		}
	}()
}

func (b *Bridge) handleSignal(sig *dbus.Signal) error {
	i := strings.LastIndex(sig.Name, ".")
	if i == -1 {
		return nil
	}
	member := Member(sig.Name[i+1:])

	switch member {
	case SignalWidgetConfigChanged:
		b.bus.Publish(WidgetConfigChanged{})

	case SignalHostWidgetAdded:
		if len(sig.Body) != 2 {
			b.logger.Error("Invalid number of arguments", zap.Int("expected", 2), zap.Int("actual", len(sig.Body)))
			return nil
		}
		raw, ok := sig.Body[0].([]byte)
		if !ok {
			b.logger.Error("Invalid body type", zap.String("expected", "[]byte"))
			return nil
		}
		provider, ok := sig.Body[1].(string)
		if !ok {
			b.logger.Error("Invalid provider type", zap.String("expected", "string"))
			return nil
		}

		var d widgets.Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		b.bus.Publish(HostWidgetAdded{Widget: d, Provider: provider})

	default:
		b.logger.Debug("Ignoring signal", zap.String("member", member.String()))
	}
	return nil
}

// Send emits a signal on the launcher interface.
func (b *Bridge) Send(member Member, body ...interface{}) error {
	b.Lock()
	defer b.Unlock()

	b.logger.Info("Sending signal",
		zap.String("member", member.String()),
		zap.Any("body", body))

	return b.conn.Emit(busPath, member.name(), body...)
}

// Stop closes the session-bus connection.
func (b *Bridge) Stop() error {
	b.Lock()
	defer b.Unlock()

	select {
	case <-b.doneChan:
		return nil
	default:
		close(b.doneChan)
	}

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
		b.logger.Info("Bus bridge connection closed")
	}
	return nil
}
