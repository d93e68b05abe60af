package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Output format template for the now command
	// Default: "{{.State}} {{.Position}} / {{.Duration}} @ {{.Rate}}x"
	OutputFormat string

	// Fixed output width for the now command (0 = disabled)
	OutputWidth int

	// Marquee scrolling for now output longer than OutputWidth
	MarqueeEnabled   bool
	MarqueeSpeed     int
	MarqueeSeparator string

	// Directory for the preference database and lock file
	DataDir string

	// Daemon log level (debug, info, warn, error)
	LogLevel string

	Browser BrowserConfig
	Player  PlayerConfig
	Keeper  KeeperConfig
}

// BrowserConfig controls how the browser is reached
type BrowserConfig struct {
	ControlURL   string
	Launch       bool
	Headless     bool
	Bin          string
	UserDataDir  string
	PumpInterval time.Duration
}

// PlayerConfig describes the player page
type PlayerConfig struct {
	PageMatch         string
	PageURL           string
	PlayPauseSelector string
	ForwardSelector   string
}

// KeeperConfig holds playback tuning
type KeeperConfig struct {
	DefaultRate         float64
	RateStep            float64
	MinRate             float64
	AdvanceThreshold    time.Duration
	AdvanceDelay        time.Duration
	GuardInterval       time.Duration
	AdvanceInterval     time.Duration
	PauseDebounce       time.Duration
	BannerDuration      time.Duration
	StartupDelay        time.Duration
	MaxUnfocusedRetries int
}

// Setting is one effective configuration value
type Setting struct {
	Key   string
	Value string
}

var defaults = map[string]any{
	"output_format":     "{{.State}} {{.Position}} / {{.Duration}} @ {{.Rate}}x",
	"output_width":      0,
	"marquee_enabled":   false,
	"marquee_speed":     2,
	"marquee_separator": " • ",
	"data_dir":          "",
	"log_level":         "info",

	"browser.control_url":   "",
	"browser.launch":        false,
	"browser.headless":      false,
	"browser.bin":           "",
	"browser.user_data_dir": "",
	"browser.pump_interval": "100ms",

	"player.page_match":          `resources\.contentconnections\.ca`,
	"player.page_url":            "",
	"player.play_pause_selector": ".mediaPlayer__playPause",
	"player.forward_selector":    ".mediaPlayer__button--forward",

	"keeper.default_rate":          1.5,
	"keeper.rate_step":             0.05,
	"keeper.min_rate":              0.25,
	"keeper.advance_threshold":     "2s",
	"keeper.advance_delay":         "2s",
	"keeper.guard_interval":        "1s",
	"keeper.advance_interval":      "1s",
	"keeper.pause_debounce":        "50ms",
	"keeper.banner_duration":       "2s",
	"keeper.startup_delay":         "1s",
	"keeper.max_unfocused_retries": 5,
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	// Map config to struct
	cfg := &Config{
		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
		DataDir:          v.GetString("data_dir"),
		LogLevel:         v.GetString("log_level"),
		Browser: BrowserConfig{
			ControlURL:   v.GetString("browser.control_url"),
			Launch:       v.GetBool("browser.launch"),
			Headless:     v.GetBool("browser.headless"),
			Bin:          v.GetString("browser.bin"),
			UserDataDir:  v.GetString("browser.user_data_dir"),
			PumpInterval: v.GetDuration("browser.pump_interval"),
		},
		Player: PlayerConfig{
			PageMatch:         v.GetString("player.page_match"),
			PageURL:           v.GetString("player.page_url"),
			PlayPauseSelector: v.GetString("player.play_pause_selector"),
			ForwardSelector:   v.GetString("player.forward_selector"),
		},
		Keeper: KeeperConfig{
			DefaultRate:         v.GetFloat64("keeper.default_rate"),
			RateStep:            v.GetFloat64("keeper.rate_step"),
			MinRate:             v.GetFloat64("keeper.min_rate"),
			AdvanceThreshold:    v.GetDuration("keeper.advance_threshold"),
			AdvanceDelay:        v.GetDuration("keeper.advance_delay"),
			GuardInterval:       v.GetDuration("keeper.guard_interval"),
			AdvanceInterval:     v.GetDuration("keeper.advance_interval"),
			PauseDebounce:       v.GetDuration("keeper.pause_debounce"),
			BannerDuration:      v.GetDuration("keeper.banner_duration"),
			StartupDelay:        v.GetDuration("keeper.startup_delay"),
			MaxUnfocusedRetries: v.GetInt("keeper.max_unfocused_retries"),
		},
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	if _, err := regexp.Compile(cfg.Player.PageMatch); err != nil {
		return nil, fmt.Errorf("invalid player.page_match: %w", err)
	}

	return cfg, nil
}

// Settings returns every effective setting, sorted by key
func Settings() ([]Setting, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]Setting, 0, len(keys))
	for _, k := range keys {
		settings = append(settings, Setting{Key: k, Value: fmt.Sprint(v.Get(k))})
	}
	return settings, nil
}

// ConfigFileUsed returns the path of the loaded config file, or "" when
// only defaults and environment apply
func ConfigFileUsed() string {
	v, err := newViper()
	if err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func newViper() (*viper.Viper, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables, e.g. PLAYKEEPER_BROWSER_CONTROL_URL
	v.SetEnvPrefix("PLAYKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "playkeeper")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "playkeeper")
}

// Save writes the player and output settings to the config file
func (c *Config) Save() error {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("log_level", c.LogLevel)
	v.Set("browser.control_url", c.Browser.ControlURL)
	v.Set("browser.launch", c.Browser.Launch)
	v.Set("player.page_match", c.Player.PageMatch)
	v.Set("player.page_url", c.Player.PageURL)

	return v.WriteConfigAs(configFile)
}
