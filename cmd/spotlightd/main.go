package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/broker"
	"github.com/kennethnym/SpotlightLauncher/internal/bus"
	"github.com/kennethnym/SpotlightLauncher/internal/config"
	"github.com/kennethnym/SpotlightLauncher/internal/coordinator"
	"github.com/kennethnym/SpotlightLauncher/internal/location"
	"github.com/kennethnym/SpotlightLauncher/internal/logger"
	"github.com/kennethnym/SpotlightLauncher/internal/mediasess"
	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/search"
	"github.com/kennethnym/SpotlightLauncher/internal/watchdog"
	"github.com/kennethnym/SpotlightLauncher/internal/weather"
	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

const (
	watchdogInterval = 15 * time.Second
	shutdownTimeout  = 2 * time.Second
)

// sysPermissions derives runtime permission state from the OS adapters.
type sysPermissions struct {
	geo   *location.GeoClue
	mpris *mediasess.MPRIS
}

func (p sysPermissions) LocationGranted() bool      { return p.geo.Granted() }
func (p sysPermissions) MediaListenerGranted() bool { return p.mpris.Granted() }

func main() {
	var debug bool
	var configPath string
	flag.BoolVar(&debug, "debug", false, "Enable debug mode")
	flag.StringVar(&configPath, "config", config.DefaultPath(), "Path to the daemon config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(debug, cfg.LogFile)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("Received signal, initiating shutdown...",
			zap.String("signal", sig.String()))
		cancel()

		time.Sleep(shutdownTimeout)
		log.Error("Shutdown timed out, forcing exit...",
			zap.Duration("timeout", shutdownTimeout))
		os.Exit(1)
	}()

	// Start watchdog in a goroutine
	wd := watchdog.New(watchdogInterval, log)
	go wd.Start(ctx)
	defer wd.Stop()

	// Preference and widget stores
	prefStore, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		log.Fatal("Failed to open preference store", zap.Error(err))
	}
	widgetStore := widgets.NewFileStore(cfg.WidgetsPath)

	// Launcher event bus and its D-Bus bridge
	launcherBus := bus.New(ctx, log)
	bridge := bus.NewBridge(ctx, launcherBus, log)
	if err := bridge.Start(); err != nil {
		log.Fatal("Failed to start launcher bus bridge", zap.Error(err))
	}
	defer bridge.Stop()

	// OS adapters. Neither is fatal: a failed connection reads as the
	// matching permission not being granted.
	geo := location.NewGeoClue(ctx, log)
	if err := geo.Connect(); err != nil {
		log.Warn("GeoClue unavailable, running without device location", zap.Error(err))
	}
	defer geo.Close()

	mpris := mediasess.NewMPRIS(ctx, log)
	if err := mpris.RetryableAttach(); err != nil {
		log.Warn("MPRIS unavailable, running without media sessions", zap.Error(err))
	}
	defer mpris.Detach()

	perms := sysPermissions{geo: geo, mpris: mpris}
	locations := location.NewManager(geo, perms.LocationGranted, log)
	weatherSvc := weather.NewOpenMeteo(cfg.WeatherEndpoint, log)

	// The coordinator ties every input source into the view state
	coord := coordinator.New(ctx, coordinator.Deps{
		Prefs:    prefStore,
		Widgets:  widgetStore,
		Weather:  weatherSvc,
		Location: locations,
		Media:    mpris,
		Perms:    perms,
		Search:   search.NewDispatcher(bridge, log),
		Bus:      launcherBus,
		Logger:   log,
	})
	if err := coord.Start(); err != nil {
		log.Fatal("Failed to start coordinator", zap.Error(err))
	}
	defer coord.Close()

	// send ready notification to systemd
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Error("Failed to notify systemd", zap.Error(err))
	}
	if !sent {
		log.Warn("Failed to notify systemd, notification not supported. It could be because NOTIFY_SOCKET is unset")
	}

	// Serve the renderer until shutdown
	viewBroker := broker.New(cfg.ListenAddr, coord.View(), coord, log)
	if err := viewBroker.ListenAndServe(ctx); err != nil {
		log.Fatal("View broker failed", zap.Error(err))
	}
}
