package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/weather"
)

const defaultWeatherCheckInterval = 30 * time.Minute

// checkTask is the single recurring weather-check task. At most one is
// scheduled at any time; scheduling a new one stops the previous first.
type checkTask struct {
	stop chan struct{}
	once sync.Once
}

func (t *checkTask) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
}

// openWeatherScope creates the weather-lifetime scope and attaches the
// weather settings watchers. Watchers skip the replayed current value; they
// react to changes only. Idempotent while the scope is already open.
func (c *Coordinator) openWeatherScope() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.weatherCancel != nil {
		return
	}

	wctx, cancel := context.WithCancel(c.ctx)
	c.weatherCtx = wctx
	c.weatherCancel = cancel

	go c.watchPrefChanges(wctx, prefs.KeyWeatherLocation, func(p prefs.Prefs) {
		if p.WeatherLocation != nil {
			c.fetchWeather(*p.WeatherLocation, p.WeatherUnit)
		}
	})
	go c.watchPrefChanges(wctx, prefs.KeyAutoLocation, c.handleAutoLocation)
	go c.watchPrefChanges(wctx, prefs.KeyWeatherCheckMinutes, func(p prefs.Prefs) {
		c.scheduleWeatherUpdate(minutes(p.WeatherCheckMinutes))
	})
	go c.watchPrefChanges(wctx, prefs.KeyLocationCheckMinutes, func(p prefs.Prefs) {
		if p.AutoLocation {
			c.deps.Location.Request(minutes(p.LocationCheckMinutes), c.refreshAt)
		}
	})
	go c.watchPrefChanges(wctx, prefs.KeyWeatherUnit, func(p prefs.Prefs) {
		c.RefreshWeather()
	})
}

// closeWeatherScope cancels every weather-scope subscription, stops the
// recurring check task and explicitly stops OS location updates, which scope
// cancellation alone would not release.
func (c *Coordinator) closeWeatherScope() {
	c.mu.Lock()
	cancel := c.weatherCancel
	c.weatherCancel = nil
	c.weatherCtx = nil
	task := c.checkTask
	c.checkTask = nil
	c.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	if cancel != nil {
		cancel()
	}
	c.deps.Location.Stop()
}

// handleShowWeather reacts to the show-weather toggle on the primary scope.
func (c *Coordinator) handleShowWeather(p prefs.Prefs) {
	if p.ShowWeather {
		c.logger.Info("Weather display enabled")
		c.openWeatherScope()
		c.initWeather(p)
		return
	}

	c.logger.Info("Weather display disabled")
	c.deps.Location.Clear()
	c.closeWeatherScope()
	c.view.Weather.Publish(nil)
}

// initWeather is the initialization policy, used at startup and whenever
// show-weather turns on: with auto-location and permission, request location
// updates (which trigger a fetch once a location is known); otherwise
// schedule periodic updates against the best known location.
func (c *Coordinator) initWeather(p prefs.Prefs) {
	if p.AutoLocation && c.deps.Perms.LocationGranted() {
		c.deps.Location.Request(minutes(p.LocationCheckMinutes), c.refreshAt)
		return
	}
	c.scheduleWeatherUpdate(minutes(p.WeatherCheckMinutes))
}

func (c *Coordinator) handleAutoLocation(p prefs.Prefs) {
	if p.AutoLocation {
		c.logger.Info("Auto location enabled")
		c.deps.Location.Request(minutes(p.LocationCheckMinutes), c.refreshAt)
		return
	}

	c.logger.Info("Auto location disabled")
	c.deps.Location.Stop()
	c.deps.Location.Clear()

	if p.WeatherLocation != nil {
		c.fetchWeather(*p.WeatherLocation, p.WeatherUnit)
		return
	}
	c.view.Weather.Publish(nil)
}

// scheduleWeatherUpdate replaces the recurring check task: the previous task
// is stopped before the new one is scheduled, so two periodic fetch loops
// can never overlap. The new task fires once immediately, then repeats.
func (c *Coordinator) scheduleWeatherUpdate(interval time.Duration) {
	if interval <= 0 {
		interval = defaultWeatherCheckInterval
	}

	c.mu.Lock()
	wctx := c.weatherCtx
	if wctx == nil {
		c.mu.Unlock()
		return
	}
	if c.checkTask != nil {
		c.checkTask.Stop()
	}
	task := &checkTask{stop: make(chan struct{})}
	c.checkTask = task
	c.mu.Unlock()

	go func() {
		c.liveCheckTasks.Add(1)
		defer c.liveCheckTasks.Add(-1)

		c.logger.Debug("Weather check task scheduled",
			zap.Duration("interval", interval),
			zap.Int32("liveTasks", c.liveCheckTasks.Load()))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.RefreshWeather()

		for {
			select {
			case <-wctx.Done():
				return
			case <-task.stop:
				return
			case <-ticker.C:
				c.RefreshWeather()
			}
		}
	}()
}

// RefreshWeather resolves the best known location and fetches weather there
// with the current unit. With no location at all, weather becomes
// unavailable.
func (c *Coordinator) RefreshWeather() {
	p := c.deps.Prefs.Get()
	if !p.ShowWeather {
		return
	}

	loc := c.bestLocation(p)
	if loc == nil {
		c.view.Weather.Publish(nil)
		return
	}
	c.fetchWeather(*loc, p.WeatherUnit)
}

// bestLocation prefers the most recently observed device location and falls
// back to the manually configured one.
func (c *Coordinator) bestLocation(p prefs.Prefs) *weather.LatLong {
	if cur := c.deps.Location.Current(); cur != nil {
		return cur
	}
	return p.WeatherLocation
}

func (c *Coordinator) refreshAt(loc weather.LatLong) {
	c.fetchWeather(loc, c.deps.Prefs.Get().WeatherUnit)
}

// fetchWeather performs one fetch and publishes the outcome. Any failure
// reads as weather unavailable; there is no retry until the next scheduled
// trigger or settings change. A fetch that resolves after the weather scope
// closed must not resurrect a snapshot.
func (c *Coordinator) fetchWeather(loc weather.LatLong, unit weather.Unit) {
	c.mu.Lock()
	ctx := c.weatherCtx
	c.mu.Unlock()
	if ctx == nil {
		return
	}

	snap, err := c.deps.Weather.Fetch(ctx, loc, unit)
	if err != nil || snap == nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Weather fetch failed",
			zap.Float64("lat", loc.Lat),
			zap.Float64("long", loc.Long),
			zap.Error(err))
		c.view.Weather.Publish(nil)
		return
	}

	if ctx.Err() != nil {
		return
	}
	c.view.Weather.Publish(&weather.Info{Unit: unit, Snapshot: *snap})
}

func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
