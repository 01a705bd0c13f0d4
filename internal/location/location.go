// Package location bridges OS location callbacks into the home-screen's
// reactive model.
package location

import (
	"time"

	"github.com/kennethnym/SpotlightLauncher/internal/weather"
)

// Listener receives continuous location updates.
type Listener func(loc weather.LatLong)

// Source abstracts the OS location service. LastKnown is a synchronous
// best-effort read; Subscribe delivers updates at roughly the given interval
// until Unsubscribe is called with the same listener.
type Source interface {
	BestProvider() (string, error)
	LastKnown(provider string) (*weather.LatLong, bool)
	Subscribe(provider string, interval time.Duration, l Listener) error
	Unsubscribe(l Listener)
}

// PermissionFunc reports whether location permission is currently granted.
type PermissionFunc func() bool
