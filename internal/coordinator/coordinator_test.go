package coordinator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kennethnym/SpotlightLauncher/internal/bus"
	"github.com/kennethnym/SpotlightLauncher/internal/location"
	"github.com/kennethnym/SpotlightLauncher/internal/mediasess"
	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/state"
	"github.com/kennethnym/SpotlightLauncher/internal/weather"
	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func current[T any](v *state.Value[T]) (T, bool) {
	return v.Get()
}

type fetchCall struct {
	loc  weather.LatLong
	unit weather.Unit
}

type fakeWeather struct {
	mu   sync.Mutex
	snap weather.Snapshot
	err  error
	// hook, when set, runs before the canned result and can block or
	// override the outcome.
	hook  func(ctx context.Context) error
	calls []fetchCall
}

func (f *fakeWeather) Fetch(ctx context.Context, loc weather.LatLong, unit weather.Unit) (*weather.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{loc: loc, unit: unit})
	hook := f.hook
	err := f.err
	snap := f.snap
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *fakeWeather) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeWeather) lastCall() (fetchCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return fetchCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

type fakeLocSource struct {
	mu           sync.Mutex
	provider     string
	lastKnown    *weather.LatLong
	listeners    []location.Listener
	unsubscribes int
}

func (f *fakeLocSource) BestProvider() (string, error) {
	return f.provider, nil
}

func (f *fakeLocSource) LastKnown(provider string) (*weather.LatLong, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastKnown == nil {
		return nil, false
	}
	loc := *f.lastKnown
	return &loc, true
}

func (f *fakeLocSource) Subscribe(provider string, interval time.Duration, l location.Listener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
	return nil
}

func (f *fakeLocSource) Unsubscribe(l location.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes++
}

func (f *fakeLocSource) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeLocSource) unsubscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes
}

type fakePerms struct {
	mu    sync.Mutex
	loc   bool
	media bool
}

func (p *fakePerms) LocationGranted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc
}

func (p *fakePerms) MediaListenerGranted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media
}

func (p *fakePerms) setMedia(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.media = granted
}

type fakeRegistry struct {
	mu       sync.Mutex
	sessions []mediasess.Session
	handler  func([]mediasess.Session)
	removals int
}

func (f *fakeRegistry) Granted() bool { return true }

func (f *fakeRegistry) ActiveSessions() []mediasess.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mediasess.Session, len(f.sessions))
	copy(out, f.sessions)
	return out
}

func (f *fakeRegistry) AddListener(handler func(sessions []mediasess.Session)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeRegistry) RemoveListener() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
	f.removals++
}

func (f *fakeRegistry) hasListener() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// report replaces the session set and drives the registered listener.
func (f *fakeRegistry) report(sessions []mediasess.Session) {
	f.mu.Lock()
	f.sessions = sessions
	handler := f.handler
	f.mu.Unlock()

	if handler != nil {
		handler(sessions)
	}
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	cancels int
}

func (f *fakeSearch) Request(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
}

func (f *fakeSearch) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

type fixture struct {
	t       *testing.T
	c       *Coordinator
	prefs   *prefs.Store
	store   *widgets.FileStore
	path    string
	weather *fakeWeather
	src     *fakeLocSource
	perms   *fakePerms
	media   *fakeRegistry
	search  *fakeSearch
	bus     *bus.Bus
}

func newFixture(t *testing.T, seed []widgets.Descriptor, mutate func(*prefs.Prefs)) *fixture {
	t.Helper()
	dir := t.TempDir()

	prefStore, err := prefs.Open(filepath.Join(dir, "prefs.toml"))
	if err != nil {
		t.Fatalf("open prefs: %v", err)
	}
	if mutate != nil {
		if err := prefStore.Update(mutate); err != nil {
			t.Fatalf("seed prefs: %v", err)
		}
	}

	widgetPath := filepath.Join(dir, "widgets.json")
	if seed != nil {
		writeWidgetFile(t, widgetPath, seed)
	}

	log := zap.NewNop()
	f := &fixture{
		t:       t,
		prefs:   prefStore,
		store:   widgets.NewFileStore(widgetPath),
		path:    widgetPath,
		weather: &fakeWeather{snap: weather.Snapshot{Temperature: 20, Condition: weather.ConditionClear}},
		src:     &fakeLocSource{provider: "fused"},
		perms:   &fakePerms{},
		media:   &fakeRegistry{},
		search:  &fakeSearch{},
		bus:     bus.New(context.Background(), log),
	}
	f.c = New(context.Background(), Deps{
		Prefs:    prefStore,
		Widgets:  f.store,
		Weather:  f.weather,
		Location: location.NewManager(f.src, f.perms.LocationGranted, log),
		Media:    f.media,
		Perms:    f.perms,
		Search:   f.search,
		Bus:      f.bus,
		Logger:   log,
	})
	return f
}

func writeWidgetFile(t *testing.T, path string, list []widgets.Descriptor) {
	t.Helper()
	data, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal widget list: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write widget file: %v", err)
	}
}

// start runs the coordinator and waits until every settings watcher has
// attached, so a subsequent preference change is seen as a change and not
// swallowed by the subscription replay.
func (f *fixture) start() {
	f.t.Helper()
	if err := f.c.Start(); err != nil {
		f.t.Fatalf("Start() failed: %v", err)
	}
	f.t.Cleanup(f.c.Close)

	waitFor(f.t, "initial projections", func() bool {
		_, ok := current(&f.c.view.Use24HrClock)
		return ok
	})
	time.Sleep(50 * time.Millisecond)
}

func (f *fixture) update(mutate func(*prefs.Prefs)) {
	f.t.Helper()
	if err := f.prefs.Update(mutate); err != nil {
		f.t.Fatalf("update prefs: %v", err)
	}
}

func twoWidgets() []widgets.Descriptor {
	return []widgets.Descriptor{
		{Kind: widgets.KindHosted, HostID: 10, Height: 2, Order: 0},
		{Kind: widgets.KindPlugin, Plugin: "calendar", Height: 3, Order: 1},
	}
}

func TestStartPublishesInitialProjections(t *testing.T) {
	f := newFixture(t, twoWidgets(), func(p *prefs.Prefs) {
		p.Use24HrClock = true
		p.ClockSize = prefs.ClockLarge
		p.SearchOrder = []string{"web", "apps"}
	})
	f.start()

	waitFor(t, "clock format", func() bool {
		v, ok := current(&f.c.view.Use24HrClock)
		return ok && v
	})
	waitFor(t, "clock size", func() bool {
		v, ok := current(&f.c.view.ClockSize)
		return ok && v == prefs.ClockLarge
	})
	waitFor(t, "search order", func() bool {
		v, ok := current(&f.c.view.SearchOrder)
		return ok && len(v) == 2 && v[0] == "web"
	})
	waitFor(t, "widget list", func() bool {
		v, ok := current(&f.c.view.Widgets)
		return ok && len(v) == 2
	})
}

func TestClockFormatChangePropagates(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start()

	f.update(func(p *prefs.Prefs) { p.Use24HrClock = true })

	waitFor(t, "updated clock format", func() bool {
		v, ok := current(&f.c.view.Use24HrClock)
		return ok && v
	})
}

func TestWidgetConfigChangedEventRefreshesList(t *testing.T) {
	f := newFixture(t, twoWidgets(), nil)
	f.start()

	waitFor(t, "initial widget list", func() bool {
		v, ok := current(&f.c.view.Widgets)
		return ok && len(v) == 2
	})

	// The settings surface rewrites the file out of process, then raises
	// the change event.
	next := append(twoWidgets(), widgets.Descriptor{
		Kind: widgets.KindHosted, HostID: 30, Height: 1, Order: 2,
	})
	writeWidgetFile(t, f.path, next)
	f.bus.Publish(bus.WidgetConfigChanged{})

	waitFor(t, "refreshed widget list", func() bool {
		v, ok := current(&f.c.view.Widgets)
		return ok && len(v) == 3
	})
}

func TestHostWidgetAddedEventPublishesNotification(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.start()

	added := widgets.Descriptor{Kind: widgets.KindHosted, HostID: 42, Height: 2}
	writeWidgetFile(t, f.path, []widgets.Descriptor{added})
	f.bus.Publish(bus.HostWidgetAdded{Widget: added, Provider: "com.example.weatherboard"})

	waitFor(t, "host widget notification", func() bool {
		v, ok := current(&f.c.view.AddedHostWidget)
		return ok && v != nil && v.Widget.HostID == 42 && v.Provider == "com.example.weatherboard"
	})
	waitFor(t, "widget list including addition", func() bool {
		v, ok := current(&f.c.view.Widgets)
		return ok && len(v) == 1
	})
}

func TestCloseRemovesMediaListener(t *testing.T) {
	f := newFixture(t, nil, func(p *prefs.Prefs) { p.MediaControl = true })
	f.perms.setMedia(true)
	f.start()

	waitFor(t, "media listener registered", f.media.hasListener)

	f.c.Close()

	if f.media.hasListener() {
		t.Error("media listener still registered after Close")
	}
}
