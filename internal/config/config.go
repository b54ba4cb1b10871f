// Package config loads the daemon configuration from a YAML file with
// sensible defaults, so a fresh install runs without any file at all.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	appDirName     = "turnoffapp"
	configFileName = "config.yml"
	logFileName    = "turnoffd.log"
)

// Config is the daemon configuration.
type Config struct {
	// DataDir holds the encrypted settings store and the key file.
	DataDir string
	// LogFile is the rotating daemon log destination.
	LogFile string

	// PollInterval is how often the foreground app is sampled while a
	// focus session is active.
	PollInterval time.Duration
	// UsageWindow is how far back the usage probe looks when deciding
	// which app is in the foreground.
	UsageWindow time.Duration
	// ScheduleCheckInterval is how often schedule activation is evaluated.
	ScheduleCheckInterval time.Duration

	// Browsers lists the package ids whose accessibility events carry URLs.
	Browsers []string
	// SelfPackage is the daemon's own identity. It is never blocked.
	SelfPackage string
}

// defaultBrowsers covers the common browsers whose address bar the URL
// monitor knows how to read.
var defaultBrowsers = []string{
	"com.android.chrome",
	"com.sec.android.app.sbrowser",
	"org.mozilla.firefox",
	"com.microsoft.emmx",
	"com.opera.browser",
	"com.brave.browser",
}

// DefaultConfigPath returns the XDG location of the config file.
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appDirName, configFileName))
}

// Load reads the configuration from path. An empty path means the default
// XDG location; a missing file yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("poll_interval", 500*time.Millisecond)
	v.SetDefault("usage_window", 10*time.Second)
	v.SetDefault("schedule_check_interval", 60*time.Second)
	v.SetDefault("browsers", defaultBrowsers)
	v.SetDefault("self_package", "com.dkpark22.turnoff")
	v.SetDefault("data_dir", "")
	v.SetDefault("log_file", "")

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = defaultPath
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		// A missing file means defaults; anything else is a real error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := Config{
		DataDir:               v.GetString("data_dir"),
		LogFile:               v.GetString("log_file"),
		PollInterval:          v.GetDuration("poll_interval"),
		UsageWindow:           v.GetDuration("usage_window"),
		ScheduleCheckInterval: v.GetDuration("schedule_check_interval"),
		Browsers:              v.GetStringSlice("browsers"),
		SelfPackage:           v.GetString("self_package"),
	}

	if cfg.DataDir == "" {
		dataDir, err := xdg.DataFile(appDirName)
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.DataDir = dataDir
	}
	if cfg.LogFile == "" {
		logFile, err := xdg.StateFile(filepath.Join(appDirName, logFileName))
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve log file path: %w", err)
		}
		cfg.LogFile = logFile
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.UsageWindow <= 0 {
		return fmt.Errorf("usage_window must be positive, got %s", c.UsageWindow)
	}
	if c.ScheduleCheckInterval <= 0 {
		return fmt.Errorf("schedule_check_interval must be positive, got %s",
			c.ScheduleCheckInterval)
	}
	return nil
}
