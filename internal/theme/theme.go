// Package theme holds the persisted color theme preference.
package theme

import (
	"fmt"
	"log/slog"
	"sync"

	"gtodo/internal/prefs"
)

// StorageKey is the prefs key holding the theme preference.
const StorageKey = "app_theme_preference"

// Theme is a theme preference.
type Theme string

const (
	Light  Theme = "light"
	Dark   Theme = "dark"
	System Theme = "system"
)

// Parse validates a theme name.
func Parse(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark, System:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("invalid theme: %s", s)
	}
}

// Manager owns the current theme. Load is the only initialization point;
// Set and Toggle are the only mutation entry points.
type Manager struct {
	mu    sync.RWMutex
	theme Theme
	store prefs.Store
	log   *slog.Logger
}

// Load reads the stored preference. Missing, unknown or unreadable values
// leave the default System theme.
func Load(store prefs.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{theme: System, store: store, log: logger}

	v, ok, err := store.Get(StorageKey)
	if err != nil {
		logger.Warn("failed to load theme pref", "error", err)
		return m
	}
	if !ok {
		return m
	}
	if t, err := Parse(v); err == nil {
		m.theme = t
	}
	return m
}

// Current returns the stored preference.
func (m *Manager) Current() Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.theme
}

// Resolved returns Light or Dark, mapping System to the platform scheme.
func (m *Manager) Resolved(platform Theme) Theme {
	t := m.Current()
	if t != System {
		return t
	}
	if platform == Dark {
		return Dark
	}
	return Light
}

// Set changes the theme and persists it. Persistence failures are logged only.
func (m *Manager) Set(t Theme) {
	m.mu.Lock()
	m.theme = t
	m.mu.Unlock()

	if err := m.store.Set(StorageKey, string(t)); err != nil {
		m.log.Warn("failed to save theme pref", "error", err)
	}
}

// Toggle switches between light and dark. System toggles to dark.
func (m *Manager) Toggle() Theme {
	next := Dark
	if m.Current() == Dark {
		next = Light
	}
	m.Set(next)
	return next
}
