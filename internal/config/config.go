// Package config holds the sessiond configuration file format and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all sessiond configuration.
type Config struct {
	Data          DataConfig          `toml:"data"`
	Collaborators CollaboratorsConfig `toml:"collaborators"`
	Engine        EngineConfig        `toml:"engine"`
}

// DataConfig holds local storage settings.
type DataConfig struct {
	Dir string `toml:"dir,omitempty"`
}

// CollaboratorsConfig holds base URLs for the external services.
type CollaboratorsConfig struct {
	AuthURL      string `toml:"auth_url"`
	ProfileURL   string `toml:"profile_url"`
	AnalyticsURL string `toml:"analytics_url"`
	BudgetURL    string `toml:"budget_url"`
	EventsURL    string `toml:"events_url"`
}

// EngineConfig holds the engine thresholds and timings.
type EngineConfig struct {
	BlockThreshold    float64  `toml:"block_threshold"`
	RecoveryThreshold float64  `toml:"recovery_threshold"`
	FetchTimeout      duration `toml:"fetch_timeout"`
	WriteTimeout      duration `toml:"write_timeout"`
	SyncDebounce      duration `toml:"sync_debounce"`
	PollInterval      duration `toml:"poll_interval"`
	SignupGrace       duration `toml:"signup_grace"`
}

// duration is a time.Duration that unmarshals from TOML strings like "4s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Duration returns the underlying time.Duration.
func (d duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the default configuration.
func Default() Config {
	return Config{
		Collaborators: CollaboratorsConfig{
			AuthURL:      "http://localhost:9099",
			ProfileURL:   "http://localhost:8081",
			AnalyticsURL: "http://localhost:8000",
			BudgetURL:    "http://localhost:5001",
			EventsURL:    "http://localhost:5000",
		},
		Engine: EngineConfig{
			BlockThreshold:    100,
			RecoveryThreshold: 800,
			FetchTimeout:      duration(4 * time.Second),
			WriteTimeout:      duration(5 * time.Second),
			SyncDebounce:      duration(1500 * time.Millisecond),
			PollInterval:      duration(5 * time.Second),
			SignupGrace:       duration(1 * time.Second),
		},
	}
}

// Dir returns the XDG-compliant data/config directory for sessiond.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sessiond")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sessiond")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file at path, returning defaults if it doesn't exist.
// An empty path means the default location.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}
