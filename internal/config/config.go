// Package config loads the spotlightd daemon configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything the daemon needs to wire itself up.
type Config struct {
	ListenAddr      string `toml:"listen_addr"`
	PrefsPath       string `toml:"prefs_path"`
	WidgetsPath     string `toml:"widgets_path"`
	LogFile         string `toml:"log_file"`
	WeatherEndpoint string `toml:"weather_endpoint"`
}

const (
	defaultConfigPath      = "~/.config/spotlight-launcher/spotlightd.toml"
	defaultListenAddr      = "127.0.0.1:8137"
	defaultPrefsPath       = "~/.config/spotlight-launcher/prefs.toml"
	defaultWidgetsPath     = "~/.local/share/spotlight-launcher/widgets.json"
	defaultLogFile         = "~/.local/share/spotlight-launcher/spotlightd.log"
	defaultWeatherEndpoint = "https://api.open-meteo.com/v1/forecast"
)

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Load reads the daemon configuration, falling back to defaults for any
// field that is missing. A missing config file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddr:      defaultListenAddr,
		PrefsPath:       mustExpand(defaultPrefsPath),
		WidgetsPath:     mustExpand(defaultWidgetsPath),
		LogFile:         mustExpand(defaultLogFile),
		WeatherEndpoint: defaultWeatherEndpoint,
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var raw Config
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if strings.TrimSpace(raw.ListenAddr) != "" {
		cfg.ListenAddr = raw.ListenAddr
	}
	if strings.TrimSpace(raw.PrefsPath) != "" {
		cfg.PrefsPath = mustExpand(raw.PrefsPath)
	}
	if strings.TrimSpace(raw.WidgetsPath) != "" {
		cfg.WidgetsPath = mustExpand(raw.WidgetsPath)
	}
	if strings.TrimSpace(raw.LogFile) != "" {
		cfg.LogFile = mustExpand(raw.LogFile)
	}
	if strings.TrimSpace(raw.WeatherEndpoint) != "" {
		cfg.WeatherEndpoint = raw.WeatherEndpoint
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
