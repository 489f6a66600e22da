package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	cfg  *Config
	once sync.Once
)

// UIMode represents the UI mode to use
type UIMode string

const (
	UIModeRofi UIMode = "rofi"
	UIModeCLI  UIMode = "cli"
)

// Config represents the application configuration.
type Config struct {
	UI struct {
		Mode             UIMode `mapstructure:"mode"`
		ShowImagePreview bool   `mapstructure:"show_image_preview"`
		ShowEpisodePrompt bool  `mapstructure:"show_episode_prompt"`
	} `mapstructure:"ui"`

	Search struct {
		// ProgressiveSearchMinWords is the word floor M for progressive
		// query reduction (§4.3/§4.4). Must be >= 1.
		ProgressiveSearchMinWords int `mapstructure:"progressive_search_min_words"`
		// FixturePlugin, when non-empty, loads the single built-in
		// fixture plugin instead of the full registry, as -d/--debug does.
		FixturePlugin string `mapstructure:"fixture_plugin"`
	} `mapstructure:"search"`

	Cache struct {
		// DurationHours bounds [1, 720]; default 168 (7 days).
		DurationHours int `mapstructure:"duration_hours"`
		Directory     string `mapstructure:"directory"`
		ShardCount    int    `mapstructure:"shard_count"`
	} `mapstructure:"cache"`

	Identity struct {
		// FuzzyThreshold in [70, 100], default 90.
		FuzzyThreshold int `mapstructure:"fuzzy_threshold"`
		CandidateLimit int `mapstructure:"candidate_limit"`
	} `mapstructure:"identity"`

	Playback struct {
		// PreferredSource is raced first in stream extraction. Empty
		// means no preferred tier: go straight to the all-source race.
		PreferredSource       string `mapstructure:"preferred_source"`
		PreferredDeadlineSecs int    `mapstructure:"preferred_deadline_seconds"`
		ReadaheadSeconds      int    `mapstructure:"readahead_seconds"`
		PlaybackSpeed         float64 `mapstructure:"playback_speed"`
		PlayerPath            string `mapstructure:"player_path"`
	} `mapstructure:"playback"`

	Anilist struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectPort int    `mapstructure:"redirect_port"`
	} `mapstructure:"anilist"`

	Plugins struct {
		Directory string   `mapstructure:"directory"`
		Languages []string `mapstructure:"languages"`
	} `mapstructure:"plugins"`

	Development bool `mapstructure:"development"`
}

// Initialize sets up the configuration system: defaults, optional .env,
// TOML file (created if absent), then environment overrides.
func Initialize() error {
	var initErr error
	once.Do(func() {
		// Optional local .env, loaded before viper so it can seed
		// process env vars that AutomaticEnv() will then pick up.
		_ = godotenv.Load()

		viper.SetConfigName("config")
		viper.SetConfigType("toml")
		viper.AddConfigPath(GetConfigDir())

		setDefaults()

		// viper joins prefix and key with its own "_", so the trailing
		// "_" here yields ANIMECORE__SECTION__KEY.
		viper.SetEnvPrefix("animecore_")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
		viper.AutomaticEnv()

		if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
			initErr = fmt.Errorf("failed to create config directory: %w", err)
			return
		}

		configFile := filepath.Join(GetConfigDir(), "config.toml")
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			if err := viper.SafeWriteConfig(); err != nil {
				initErr = fmt.Errorf("failed to write default config: %w", err)
				return
			}
		}

		if err := viper.ReadInConfig(); err != nil {
			initErr = fmt.Errorf("failed to read config: %w", err)
			return
		}

		cfg = &Config{}
		if err := viper.Unmarshal(cfg); err != nil {
			initErr = fmt.Errorf("failed to parse config: %w", err)
			return
		}

		clampConfig(cfg)
	})

	return initErr
}

// clampConfig enforces the bounds the spec calls out explicitly so a
// malformed env override or config file can't produce nonsensical
// behavior (§4.5, §4.6, §9 Open Questions).
func clampConfig(c *Config) {
	if c.Cache.DurationHours < 1 {
		c.Cache.DurationHours = 1
	}
	if c.Cache.DurationHours > 720 {
		c.Cache.DurationHours = 720
	}
	if c.Identity.FuzzyThreshold < 70 {
		c.Identity.FuzzyThreshold = 70
	}
	if c.Identity.FuzzyThreshold > 100 {
		c.Identity.FuzzyThreshold = 100
	}
	if c.Search.ProgressiveSearchMinWords < 1 {
		c.Search.ProgressiveSearchMinWords = 1
	}
}

func setDefaults() {
	viper.SetDefault("ui.mode", UIModeCLI)
	viper.SetDefault("ui.show_image_preview", true)
	viper.SetDefault("ui.show_episode_prompt", true)

	viper.SetDefault("search.progressive_search_min_words", 1)
	viper.SetDefault("search.fixture_plugin", "")

	viper.SetDefault("cache.duration_hours", 168)
	viper.SetDefault("cache.directory", filepath.Join(dataDir(), "cache"))
	viper.SetDefault("cache.shard_count", 8)

	viper.SetDefault("identity.fuzzy_threshold", 90)
	viper.SetDefault("identity.candidate_limit", 10)

	viper.SetDefault("playback.preferred_source", "")
	viper.SetDefault("playback.preferred_deadline_seconds", 15)
	viper.SetDefault("playback.readahead_seconds", 30)
	viper.SetDefault("playback.playback_speed", 1.0)
	viper.SetDefault("playback.player_path", "mpv")

	viper.SetDefault("anilist.client_id", "27391")
	viper.SetDefault("anilist.client_secret", "")
	viper.SetDefault("anilist.redirect_port", 8000)

	viper.SetDefault("plugins.directory", filepath.Join(dataDir(), "plugins"))
	viper.SetDefault("plugins.languages", []string{"en"})

	viper.SetDefault("development", false)
}

func dataDir() string {
	return filepath.Join(os.ExpandEnv("$HOME"), ".local", "share", "animecore")
}

// Get returns the current configuration. Panics if Initialize wasn't
// called, matching the fail-fast behavior for programmer errors the
// teacher uses elsewhere.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// GetConfigDir returns the configuration directory.
func GetConfigDir() string {
	return filepath.Join(os.ExpandEnv("$HOME"), ".config", "animecore")
}

// GetDataDir returns the per-user state directory for persisted files
// (history, token, mappings, cache) per §6.
func GetDataDir() string {
	return dataDir()
}

// Save writes the current configuration to disk.
func Save() error {
	for k, v := range viper.AllSettings() {
		viper.Set(k, v)
	}
	return viper.WriteConfig()
}
