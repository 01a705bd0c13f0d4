// Package prefs persists launcher user settings and exposes each setting as
// an observable stream: watchers receive the current value on subscribe and
// a new snapshot on every change of the watched key.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/kennethnym/SpotlightLauncher/internal/weather"
)

// ClockSize is the display size of the home-screen clock widget.
type ClockSize string

const (
	ClockSmall  ClockSize = "small"
	ClockMedium ClockSize = "medium"
	ClockLarge  ClockSize = "large"
)

// Key names one observable setting.
type Key string

const (
	KeyUse24HrClock         Key = "use_24hr_clock"
	KeyClockSize            Key = "clock_size"
	KeyShowWeather          Key = "show_weather"
	KeyAutoLocation         Key = "auto_location"
	KeyWeatherLocation      Key = "weather_location"
	KeyWeatherUnit          Key = "weather_unit"
	KeyWeatherCheckMinutes  Key = "weather_check_minutes"
	KeyLocationCheckMinutes Key = "location_check_minutes"
	KeySearchOrder          Key = "search_order"
	KeyMediaControl         Key = "media_control"
)

// Prefs is the full persisted settings document.
type Prefs struct {
	Use24HrClock         bool             `toml:"use_24hr_clock"`
	ClockSize            ClockSize        `toml:"clock_size"`
	ShowWeather          bool             `toml:"show_weather"`
	AutoLocation         bool             `toml:"auto_location"`
	WeatherLocation      *weather.LatLong `toml:"weather_location,omitempty"`
	WeatherUnit          weather.Unit     `toml:"weather_unit"`
	WeatherCheckMinutes  int              `toml:"weather_check_minutes"`
	LocationCheckMinutes int              `toml:"location_check_minutes"`
	SearchOrder          []string         `toml:"search_order"`
	MediaControl         bool             `toml:"media_control"`
}

// Defaults returns the settings a fresh install starts with.
func Defaults() Prefs {
	return Prefs{
		Use24HrClock:         false,
		ClockSize:            ClockMedium,
		ShowWeather:          false,
		AutoLocation:         false,
		WeatherUnit:          weather.UnitCelsius,
		WeatherCheckMinutes:  30,
		LocationCheckMinutes: 15,
		SearchOrder:          []string{"apps", "shortcuts", "files", "web"},
		MediaControl:         false,
	}
}

func (p Prefs) clone() Prefs {
	c := p
	c.SearchOrder = slices.Clone(p.SearchOrder)
	if p.WeatherLocation != nil {
		loc := *p.WeatherLocation
		c.WeatherLocation = &loc
	}
	return c
}

// changedKeys reports every key whose value differs between the two
// snapshots.
func changedKeys(old, next Prefs) []Key {
	var changed []Key
	if old.Use24HrClock != next.Use24HrClock {
		changed = append(changed, KeyUse24HrClock)
	}
	if old.ClockSize != next.ClockSize {
		changed = append(changed, KeyClockSize)
	}
	if old.ShowWeather != next.ShowWeather {
		changed = append(changed, KeyShowWeather)
	}
	if old.AutoLocation != next.AutoLocation {
		changed = append(changed, KeyAutoLocation)
	}
	if !latLongEqual(old.WeatherLocation, next.WeatherLocation) {
		changed = append(changed, KeyWeatherLocation)
	}
	if old.WeatherUnit != next.WeatherUnit {
		changed = append(changed, KeyWeatherUnit)
	}
	if old.WeatherCheckMinutes != next.WeatherCheckMinutes {
		changed = append(changed, KeyWeatherCheckMinutes)
	}
	if old.LocationCheckMinutes != next.LocationCheckMinutes {
		changed = append(changed, KeyLocationCheckMinutes)
	}
	if !slices.Equal(old.SearchOrder, next.SearchOrder) {
		changed = append(changed, KeySearchOrder)
	}
	if old.MediaControl != next.MediaControl {
		changed = append(changed, KeyMediaControl)
	}
	return changed
}

func latLongEqual(a, b *weather.LatLong) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func load(path string) (Prefs, error) {
	p := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read prefs: %w", err)
	}

	if err := toml.Unmarshal(data, &p); err != nil {
		return Defaults(), fmt.Errorf("parse prefs: %w", err)
	}
	return p, nil
}

func save(path string, p Prefs) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		return fmt.Errorf("finalize prefs: %w", err)
	}
	return nil
}
