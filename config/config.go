// Package config loads blindmark settings from defaults, an optional TOML
// file and BLINDMARK_ environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BLINDMARK"

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	UI       UIConfig
	Download DownloadConfig
	History  HistoryConfig
	Log      LogConfig
	Update   UpdateConfig
	Debug    bool
}

// ServerConfig locates the watermark service.
type ServerConfig struct {
	URL     string
	Timeout time.Duration
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Language string
}

// DownloadConfig controls where processed images are saved.
type DownloadConfig struct {
	Dir       string
	Overwrite bool
}

// HistoryConfig holds the embed history database settings.
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// LogConfig holds log destination and level.
type LogConfig struct {
	File  string
	Level string
}

// UpdateConfig names the GitHub repository releases are fetched from.
type UpdateConfig struct {
	Repo string
}

// Path returns the config file location: $BLINDMARK_CONFIG or ~/.config/blindmark/config.toml
func Path() string {
	if p := os.Getenv(envPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(home(), ".config", "blindmark", "config.toml")
}

func home() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.Getenv("HOME")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://localhost:5000")
	v.SetDefault("server.timeout", time.Duration(0))
	v.SetDefault("ui.language", "en")
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.overwrite", false)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(home(), ".local", "share", "blindmark", "history.db"))
	v.SetDefault("log.file", filepath.Join(home(), ".local", "state", "blindmark", "blindmark.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("debug", false)
	v.SetDefault("update.repo", "blindmark/blindmark")
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return c
}

// Load reads configuration from file and env. Env var overrides use prefix BLINDMARK_.
// A missing config file is not an error; a malformed one is.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(Path()); statErr == nil {
			return Config{}, fmt.Errorf("read config %s: %w", Path(), err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) (string, error) {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("server.url", cfg.Server.URL)
	v.Set("server.timeout", cfg.Server.Timeout.String())
	v.Set("ui.language", cfg.UI.Language)
	v.Set("download.dir", cfg.Download.Dir)
	v.Set("download.overwrite", cfg.Download.Overwrite)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("log.file", cfg.Log.File)
	v.Set("log.level", cfg.Log.Level)
	v.Set("debug", cfg.Debug)
	v.Set("update.repo", cfg.Update.Repo)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// SlogLevel maps log.level and the debug flag onto a slog level.
func (c Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
