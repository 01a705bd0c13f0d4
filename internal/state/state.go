// Package state provides the observable value primitive and the aggregate
// home-screen view state consumed by the renderer.
package state

import (
	"sync"

	"github.com/kennethnym/SpotlightLauncher/internal/mediasess"
	"github.com/kennethnym/SpotlightLauncher/internal/prefs"
	"github.com/kennethnym/SpotlightLauncher/internal/weather"
	"github.com/kennethnym/SpotlightLauncher/internal/widgets"
)

// Value is a single observable field with last-write-wins semantics.
// Publish is safe from any goroutine; within one field updates are applied
// in the order received. Subscribers that fall behind are conflated to the
// newest value rather than blocking the publisher.
type Value[T any] struct {
	mu     sync.Mutex
	set    bool
	cur    T
	subs   map[int]chan T
	nextID int
}

// Publish replaces the current value and notifies every subscriber.
func (v *Value[T]) Publish(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.cur = val
	v.set = true
	for _, ch := range v.subs {
		offer(ch, val)
	}
}

// Get returns the current value and whether one has been published.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur, v.set
}

// Subscribe registers an observer. If a value has been published the channel
// replays it immediately. The cancel function releases the subscription.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 8)
	id := v.nextID
	v.nextID++
	if v.subs == nil {
		v.subs = make(map[int]chan T)
	}
	v.subs[id] = ch

	if v.set {
		ch <- v.cur
	}

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
	return ch, cancel
}

func offer[T any](ch chan T, val T) {
	select {
	case ch <- val:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- val:
		default:
		}
	}
}

// ViewState is the normalized home-screen state. Each field is independently
// observable; nil pointers mean "unavailable" where that is meaningful.
type ViewState struct {
	// Weather is nil whenever weather display is disabled or no snapshot
	// could be fetched.
	Weather Value[*weather.Info]

	ClockSize    Value[prefs.ClockSize]
	Use24HrClock Value[bool]

	// Widgets is the full ordered widget list.
	Widgets Value[[]widgets.Descriptor]

	// AddedHostWidget reports only the most recently added hosted widget,
	// as a one-shot notification.
	AddedHostWidget Value[*widgets.HostAddition]

	SearchOrder Value[[]string]

	// MediaControlEnabled is derived: true only when the user setting is on
	// AND the session listener permission is granted.
	MediaControlEnabled Value[bool]
	ActiveMediaSession  Value[*mediasess.Session]
}

func NewViewState() *ViewState {
	return &ViewState{}
}
