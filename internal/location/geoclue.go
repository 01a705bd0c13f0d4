package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/weather"
)

const (
	geoClueService    = "org.freedesktop.GeoClue2"
	geoClueManagerObj = "/org/freedesktop/GeoClue2/Manager"
	geoClueClientIfc  = "org.freedesktop.GeoClue2.Client"
	geoClueLocIfc     = "org.freedesktop.GeoClue2.Location"

	geoClueDesktopID = "spotlight-launcher"
	geoClueProvider  = "geoclue2"

	// GClueAccuracyLevelExact
	geoClueAccuracy = uint32(8)
)

// GeoClue adapts the GeoClue2 system service to the Source contract. A
// failed connection reads as location permission not granted.
type GeoClue struct {
	sync.Mutex

	ctx        context.Context
	logger     *zap.Logger
	conn       *dbus.Conn
	client     dbus.BusObject
	clientPath dbus.ObjectPath
	sigChan    chan *dbus.Signal
	doneChan   chan struct{}
	listeners  []Listener
	started    bool
}

func NewGeoClue(ctx context.Context, logger *zap.Logger) *GeoClue {
	return &GeoClue{
		ctx:      ctx,
		logger:   logger,
		sigChan:  make(chan *dbus.Signal, 10),
		doneChan: make(chan struct{}),
	}
}

// Connect establishes the system-bus client. Failure here is tolerated by
// callers; the launcher simply runs without device location.
func (g *GeoClue) Connect() error {
	g.Lock()
	defer g.Unlock()

	if g.conn != nil {
		return nil
	}

	g.logger.Info("Connecting to GeoClue")

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}

	var clientPath dbus.ObjectPath
	manager := conn.Object(geoClueService, geoClueManagerObj)
	if err := manager.Call(geoClueService+".Manager.GetClient", 0).Store(&clientPath); err != nil {
		conn.Close()
		return fmt.Errorf("get geoclue client: %w", err)
	}

	client := conn.Object(geoClueService, clientPath)
	if err := client.SetProperty(geoClueClientIfc+".DesktopId", dbus.MakeVariant(geoClueDesktopID)); err != nil {
		conn.Close()
		return fmt.Errorf("set desktop id: %w", err)
	}
	if err := client.SetProperty(geoClueClientIfc+".RequestedAccuracyLevel", dbus.MakeVariant(geoClueAccuracy)); err != nil {
		conn.Close()
		return fmt.Errorf("set accuracy level: %w", err)
	}

	err = conn.AddMatchSignalContext(g.ctx,
		dbus.WithMatchObjectPath(clientPath),
		dbus.WithMatchInterface(geoClueClientIfc),
		dbus.WithMatchMember("LocationUpdated"),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("match LocationUpdated: %w", err)
	}

	g.conn = conn
	g.client = client
	g.clientPath = clientPath
	conn.Signal(g.sigChan)
	g.background()

	g.logger.Info("Connected to GeoClue", zap.String("client", string(clientPath)))
	return nil
}

// Granted reports whether location permission is currently held.
func (g *GeoClue) Granted() bool {
	g.Lock()
	defer g.Unlock()
	return g.conn != nil
}

// BestProvider resolves the provider to use for update requests.
func (g *GeoClue) BestProvider() (string, error) {
	g.Lock()
	defer g.Unlock()
	if g.conn == nil {
		return "", fmt.Errorf("geoclue is not connected")
	}
	return geoClueProvider, nil
}

// LastKnown synchronously reads the client's current location, if any.
func (g *GeoClue) LastKnown(provider string) (*weather.LatLong, bool) {
	g.Lock()
	client := g.client
	g.Unlock()

	if client == nil {
		return nil, false
	}

	variant, err := client.GetProperty(geoClueClientIfc + ".Location")
	if err != nil {
		return nil, false
	}
	path, ok := variant.Value().(dbus.ObjectPath)
	if !ok || path == "/" || path == "" {
		return nil, false
	}

	loc, err := g.readLocation(path)
	if err != nil {
		g.logger.Warn("Failed to read last known location", zap.Error(err))
		return nil, false
	}
	return loc, true
}

// Subscribe starts continuous updates at roughly the given interval and
// registers the listener for every subsequent location change.
func (g *GeoClue) Subscribe(provider string, interval time.Duration, l Listener) error {
	g.Lock()
	defer g.Unlock()

	if g.client == nil {
		return fmt.Errorf("geoclue is not connected")
	}

	seconds := uint32(interval / time.Second)
	if err := g.client.SetProperty(geoClueClientIfc+".TimeThreshold", dbus.MakeVariant(seconds)); err != nil {
		return fmt.Errorf("set time threshold: %w", err)
	}

	if !g.started {
		if err := g.client.Call(geoClueClientIfc+".Start", 0).Err; err != nil {
			return fmt.Errorf("start geoclue client: %w", err)
		}
		g.started = true
	}

	g.listeners = append(g.listeners, l)
	return nil
}

// Unsubscribe removes the listener. When the last listener is gone the
// client is stopped so the OS stops producing fixes.
func (g *GeoClue) Unsubscribe(l Listener) {
	g.Lock()
	defer g.Unlock()

	for i, listener := range g.listeners {
		if fmt.Sprintf("%p", listener) == fmt.Sprintf("%p", l) {
			g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
			break
		}
	}

	if len(g.listeners) == 0 && g.started && g.client != nil {
		if err := g.client.Call(geoClueClientIfc+".Stop", 0).Err; err != nil {
			g.logger.Warn("Failed to stop geoclue client", zap.Error(err))
		}
		g.started = false
	}
}

func (g *GeoClue) background() {
	go func() {
		g.logger.Info("GeoClue background goroutine started")
		for {
			select {
			case <-g.ctx.Done():
				g.logger.Info("Context cancelled, stopping GeoClue watcher")
				g.Close()
				return
			case <-g.doneChan:
				g.logger.Info("GeoClue watcher stopped")
				return
			case sig := <-g.sigChan:
				if sig == nil {
					continue
				}
				if sig.Name != geoClueClientIfc+".LocationUpdated" {
					continue
				}
				g.handleLocationUpdated(sig)
			}
		}
	}()
}

func (g *GeoClue) handleLocationUpdated(sig *dbus.Signal) {
	if len(sig.Body) != 2 {
		g.logger.Warn("Unexpected LocationUpdated body", zap.Int("len", len(sig.Body)))
		return
	}
	newPath, ok := sig.Body[1].(dbus.ObjectPath)
	if !ok {
		return
	}

	loc, err := g.readLocation(newPath)
	if err != nil {
		g.logger.Warn("Failed to read updated location", zap.Error(err))
		return
	}

	g.Lock()
	listeners := make([]Listener, len(g.listeners))
	copy(listeners, g.listeners)
	g.Unlock()

	g.logger.Debug("Location updated",
		zap.Float64("lat", loc.Lat),
		zap.Float64("long", loc.Long))

	for _, listener := range listeners {
		listener(*loc)
	}
}

func (g *GeoClue) readLocation(path dbus.ObjectPath) (*weather.LatLong, error) {
	g.Lock()
	conn := g.conn
	g.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("geoclue is not connected")
	}

	obj := conn.Object(geoClueService, path)

	latVariant, err := obj.GetProperty(geoClueLocIfc + ".Latitude")
	if err != nil {
		return nil, fmt.Errorf("read latitude: %w", err)
	}
	longVariant, err := obj.GetProperty(geoClueLocIfc + ".Longitude")
	if err != nil {
		return nil, fmt.Errorf("read longitude: %w", err)
	}

	lat, ok := latVariant.Value().(float64)
	if !ok {
		return nil, fmt.Errorf("latitude has unexpected type")
	}
	long, ok := longVariant.Value().(float64)
	if !ok {
		return nil, fmt.Errorf("longitude has unexpected type")
	}

	return &weather.LatLong{Lat: lat, Long: long}, nil
}

// Close tears down the connection and watcher.
func (g *GeoClue) Close() {
	g.Lock()
	defer g.Unlock()

	select {
	case <-g.doneChan:
		return
	default:
		close(g.doneChan)
	}

	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
		g.logger.Info("GeoClue connection closed")
	}
}
