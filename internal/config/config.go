// Package config handles the XDG configuration directory, file paths and
// the optional config.toml.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"gtodo/internal/logging"
)

const (
	// AppName is the application directory name.
	AppName = "gtodo"

	// ConfigFile is the optional settings filename.
	ConfigFile = "config.toml"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// PrefsFile holds local preferences (task order, theme).
	PrefsFile = "prefs.json"

	// DatabaseFile is the default SQLite task store filename.
	DatabaseFile = "tasks.db"

	// GoogleStateFile remembers when each Google Tasks item was first seen.
	GoogleStateFile = "googletasks.json"
)

// Backend names.
const (
	BackendSQLite      = "sqlite"
	BackendGoogleTasks = "googletasks"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Log is the process logger. Nil discards.
	Log *slog.Logger

	// Settings are read from config.toml.
	Settings Settings
}

// Settings is the decoded config.toml.
type Settings struct {
	Backend       string   `toml:"backend"`
	LogLevel      string   `toml:"log_level"`
	Database      string   `toml:"database"`
	OrderDebounce Duration `toml:"order_debounce"`
	Google        Google   `toml:"google"`
	Server        Server   `toml:"server"`
}

// Google configures the Google Tasks backend.
type Google struct {
	ListID string `toml:"list_id"`
}

// Server configures `gtodo serve`.
type Server struct {
	Addr         string   `toml:"addr"`
	PollInterval Duration `toml:"poll_interval"`
}

// Duration decodes TOML strings such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/gtodo or $HOME/.config/gtodo.
// A missing config.toml is not an error.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadSettings() error {
	path := c.SettingsPath()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &c.Settings); err != nil {
			return fmt.Errorf("invalid %s: %w", ConfigFile, err)
		}
	}
	applyDefaults(&c.Settings)
	switch c.Settings.Backend {
	case BackendSQLite, BackendGoogleTasks:
		return nil
	default:
		return fmt.Errorf("invalid backend in %s: %s", ConfigFile, c.Settings.Backend)
	}
}

func applyDefaults(s *Settings) {
	if s.Backend == "" {
		s.Backend = BackendSQLite
	}
	if s.Google.ListID == "" {
		s.Google.ListID = "@default"
	}
	if s.Server.Addr == "" {
		s.Server.Addr = "127.0.0.1:18480"
	}
	if s.OrderDebounce.Duration <= 0 {
		s.OrderDebounce.Duration = 500 * time.Millisecond
	}
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Logger returns the configured logger or a discarding one.
func (c *Config) Logger() *slog.Logger {
	if c.Log == nil {
		return logging.Discard()
	}
	return c.Log
}

// SettingsPath returns the path to config.toml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// PrefsPath returns the path to the local preferences file.
func (c *Config) PrefsPath() string {
	return filepath.Join(c.Dir, PrefsFile)
}

// GoogleStatePath returns the path to the Google Tasks state file.
func (c *Config) GoogleStatePath() string {
	return filepath.Join(c.Dir, GoogleStateFile)
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	if c.Settings.Database != "" {
		return c.Settings.Database
	}
	return filepath.Join(c.Dir, DatabaseFile)
}

// OrderDebounce returns the delay for debounced order writes.
func (c *Config) OrderDebounce() time.Duration {
	if c.Settings.OrderDebounce.Duration <= 0 {
		return 500 * time.Millisecond
	}
	return c.Settings.OrderDebounce.Duration
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}
