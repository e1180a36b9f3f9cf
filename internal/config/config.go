package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	AniList AniListConfig `mapstructure:"anilist"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the content API endpoint configuration
type ServerConfig struct {
	URL string `mapstructure:"url"` // User-supplied base URL, http/https only
}

// CacheConfig holds offline cache configuration
type CacheConfig struct {
	Dir      string        `mapstructure:"dir"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

// AniListConfig holds list-sync service credentials
type AniListConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// SyncConfig holds orchestrator scheduling configuration
type SyncConfig struct {
	// Schedule is a cron expression for the low-frequency maintenance
	// checkpoint (offline snapshot + cache sweep).
	Schedule string `mapstructure:"schedule"`

	// ProbeURL is the known-good endpoint used for the reachability check.
	ProbeURL string `mapstructure:"probe_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "",
		},
		Cache: CacheConfig{
			Dir:      defaultCachePath(),
			MaxAge:   7 * 24 * time.Hour,
			MaxBytes: 500 * 1024 * 1024,
		},
		Sync: SyncConfig{
			Schedule: "@every 30m",
			ProbeURL: "https://www.google.com/generate_204",
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anibox", "anibox.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anibox", "anibox.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anibox")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "anibox")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "anibox", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anibox", "cache")
	}
}

// DefaultDataPath returns the directory holding the key/value database
func DefaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "anibox", "data")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anibox", "data")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("ANIBOX")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("cache.dir", cfg.Cache.Dir)
	viper.Set("cache.max_age", cfg.Cache.MaxAge)
	viper.Set("cache.max_bytes", cfg.Cache.MaxBytes)
	viper.Set("anilist.client_id", cfg.AniList.ClientID)
	viper.Set("anilist.client_secret", cfg.AniList.ClientSecret)
	viper.Set("anilist.redirect_uri", cfg.AniList.RedirectURI)
	viper.Set("sync.schedule", cfg.Sync.Schedule)
	viper.Set("sync.probe_url", cfg.Sync.ProbeURL)
	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if a server base URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// ValidateServerURL checks a user-supplied base URL before use.
// Only http and https schemes are accepted.
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server URL scheme %q: must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server URL: missing host")
	}
	return nil
}
