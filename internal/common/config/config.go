package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidInterval = errors.New("daemon.interval must be a positive duration")
	ErrInvalidTimeout  = errors.New("aur.timeout must be a positive duration")
	ErrNoPackagesFile  = errors.New("daemon.packages_file is not configured")
	ErrNoCacheFile     = errors.New("daemon.cache_file is not configured")
)

// Config represents the application configuration
type Config struct {
	AUR    AURConfig    `yaml:"aur"`
	Daemon DaemonConfig `yaml:"daemon"`
	Notify NotifyConfig `yaml:"notify"`
}

// AURConfig holds settings for the remote metadata service
type AURConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"` // parsed with time.ParseDuration
}

// DaemonConfig holds poll loop settings
type DaemonConfig struct {
	Interval     string `yaml:"interval"` // sleep between passes
	PackagesFile string `yaml:"packages_file"`
	CacheFile    string `yaml:"cache_file"`
	LogDir       string `yaml:"log_dir"` // per-package build logs
}

// NotifyConfig holds the optional notification hook
type NotifyConfig struct {
	Command string `yaml:"command"` // run after each build result, empty disables
}

// DefaultConfig returns a configuration populated with built-in defaults
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}

	return &Config{
		AUR: AURConfig{
			URL:     "https://aur.archlinux.org",
			Timeout: "30s",
		},
		Daemon: DaemonConfig{
			Interval:     "1h",
			PackagesFile: filepath.Join(xdgConfig, "aurbuild", "packages.toml"),
			CacheFile:    filepath.Join(xdgState, "aurbuild", "lastmodified.json"),
			LogDir:       filepath.Join(xdgState, "aurbuild", "logs"),
		},
		Notify: NotifyConfig{},
	}, nil
}

// ConfigPaths returns all possible config file paths in priority order
// 1. ~/.config/aurbuild/config.yaml (XDG standard - priority)
// 2. ~/.aurbuild/config.yaml (legacy fallback)
func ConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "aurbuild", "config.yaml"),
		filepath.Join(home, ".aurbuild", "config.yaml"),
	}, nil
}

// DefaultConfigPath returns the default config file path (XDG standard)
func DefaultConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// FindConfigPath returns the config file path to use. The AURBUILD_CONFIG
// environment variable wins, then the first existing candidate path, then
// the default path for creation.
func FindConfigPath() (string, error) {
	if env := os.Getenv("AURBUILD_CONFIG"); env != "" {
		return env, nil
	}

	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// No config exists, return default (XDG) path for creation
	return paths[0], nil
}

// Load reads configuration from the first available config file
func Load() (*Config, error) {
	configPath, err := FindConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from a specific file path.
// A missing file yields the built-in defaults and writes them out so the
// user has a file to edit.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg, err := DefaultConfig()
			if err != nil {
				return nil, err
			}
			if saveErr := cfg.SaveTo(path); saveErr != nil {
				return nil, saveErr
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to the default config file
func (c *Config) Save() error {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes configuration to a specific file path
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Settings is the fully resolved runtime configuration: durations parsed,
// paths expanded, ready for the CLI to hand to the components.
type Settings struct {
	AURURL        string
	FetchTimeout  time.Duration
	PollInterval  time.Duration
	PackagesFile  string
	CacheFile     string
	LogDir        string
	NotifyCommand string
}

// Resolve parses and expands the raw configuration into Settings
func (c *Config) Resolve() (*Settings, error) {
	timeout, err := c.FetchTimeout()
	if err != nil {
		return nil, err
	}
	interval, err := c.PollInterval()
	if err != nil {
		return nil, err
	}
	packagesFile, err := c.PackagesPath()
	if err != nil {
		return nil, err
	}
	cacheFile, err := c.CachePath()
	if err != nil {
		return nil, err
	}
	logDir, err := c.BuildLogDir()
	if err != nil {
		return nil, err
	}

	return &Settings{
		AURURL:        c.AUR.URL,
		FetchTimeout:  timeout,
		PollInterval:  interval,
		PackagesFile:  packagesFile,
		CacheFile:     cacheFile,
		LogDir:        logDir,
		NotifyCommand: c.Notify.Command,
	}, nil
}

// Validate checks that every field needed to run is present and parseable
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// FetchTimeout returns the parsed metadata fetch timeout
func (c *Config) FetchTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.AUR.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidTimeout, c.AUR.Timeout)
	}
	return d, nil
}

// PollInterval returns the parsed sleep between passes
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Daemon.Interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidInterval, c.Daemon.Interval)
	}
	return d, nil
}

// PackagesPath returns the expanded path of the packages file
func (c *Config) PackagesPath() (string, error) {
	if c.Daemon.PackagesFile == "" {
		return "", ErrNoPackagesFile
	}
	return expandTilde(c.Daemon.PackagesFile)
}

// CachePath returns the expanded path of the cache file
func (c *Config) CachePath() (string, error) {
	if c.Daemon.CacheFile == "" {
		return "", ErrNoCacheFile
	}
	return expandTilde(c.Daemon.CacheFile)
}

// BuildLogDir returns the expanded build log directory, empty when unset
func (c *Config) BuildLogDir() (string, error) {
	if c.Daemon.LogDir == "" {
		return "", nil
	}
	return expandTilde(c.Daemon.LogDir)
}

// expandTilde expands a leading ~ to the user home directory
func expandTilde(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
