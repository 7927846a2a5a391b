package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genValidPath generates valid path strings (alphanumeric with slashes)
func genValidPath() gopter.Gen {
	return gen.RegexMatch(`^/[a-z][a-z0-9/]{0,20}$`)
}

// genValidURL generates valid base URL strings
func genValidURL() gopter.Gen {
	return gen.RegexMatch(`^https://[a-z]{3,12}\.[a-z]{2,3}$`)
}

// genValidDuration generates duration strings time.ParseDuration accepts
func genValidDuration() gopter.Gen {
	return gen.RegexMatch(`^[1-9][0-9]{0,2}[smh]$`)
}

// genConfig generates valid Config structs
func genConfig() gopter.Gen {
	return gopter.CombineGens(
		genValidURL(),
		genValidDuration(),
		genValidDuration(),
		genValidPath(),
		genValidPath(),
		genValidPath(),
		gen.AlphaString(),
	).Map(func(values []interface{}) *Config {
		return &Config{
			AUR: AURConfig{
				URL:     values[0].(string),
				Timeout: values[1].(string),
			},
			Daemon: DaemonConfig{
				Interval:     values[2].(string),
				PackagesFile: values[3].(string),
				CacheFile:    values[4].(string),
				LogDir:       values[5].(string),
			},
			Notify: NotifyConfig{
				Command: values[6].(string),
			},
		}
	})
}

func TestConfigRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Config YAML round-trip preserves data", prop.ForAll(
		func(cfg *Config) bool {
			tmpDir, err := os.MkdirTemp("", "config-test-*")
			if err != nil {
				t.Logf("Failed to create temp dir: %v", err)
				return false
			}
			defer os.RemoveAll(tmpDir)

			configPath := filepath.Join(tmpDir, "config.yaml")

			if err := cfg.SaveTo(configPath); err != nil {
				t.Logf("Failed to save config: %v", err)
				return false
			}

			loaded, err := LoadFrom(configPath)
			if err != nil {
				t.Logf("Failed to load config: %v", err)
				return false
			}

			return reflect.DeepEqual(cfg, loaded)
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

// TestMissingConfigFileCreatesDefault tests that a missing config file is
// created with the built-in defaults
func TestMissingConfigFileCreatesDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.AUR.URL != "https://aur.archlinux.org" {
		t.Errorf("Expected default AUR URL, got: %s", cfg.AUR.URL)
	}
	if cfg.AUR.Timeout != "30s" {
		t.Errorf("Expected default timeout 30s, got: %s", cfg.AUR.Timeout)
	}
	if cfg.Daemon.Interval != "1h" {
		t.Errorf("Expected default interval 1h, got: %s", cfg.Daemon.Interval)
	}
	if cfg.Notify.Command != "" {
		t.Errorf("Expected empty notify command, got: %s", cfg.Notify.Command)
	}

	// The default file is written out for the user to edit
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Expected config file to be created, got: %v", err)
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		expected error
	}{
		{
			name:     "zero interval",
			mutate:   func(c *Config) { c.Daemon.Interval = "0s" },
			expected: ErrInvalidInterval,
		},
		{
			name:     "garbage interval",
			mutate:   func(c *Config) { c.Daemon.Interval = "often" },
			expected: ErrInvalidInterval,
		},
		{
			name:     "negative timeout",
			mutate:   func(c *Config) { c.AUR.Timeout = "-5s" },
			expected: ErrInvalidTimeout,
		},
		{
			name:     "garbage timeout",
			mutate:   func(c *Config) { c.AUR.Timeout = "soon" },
			expected: ErrInvalidTimeout,
		},
		{
			name:     "missing packages file",
			mutate:   func(c *Config) { c.Daemon.PackagesFile = "" },
			expected: ErrNoPackagesFile,
		},
		{
			name:     "missing cache file",
			mutate:   func(c *Config) { c.Daemon.CacheFile = "" },
			expected: ErrNoCacheFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DefaultConfig()
			if err != nil {
				t.Fatalf("DefaultConfig failed: %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestResolveParsesDurationsAndPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir failed: %v", err)
	}

	cfg := &Config{
		AUR: AURConfig{
			URL:     "https://aur.example.org",
			Timeout: "45s",
		},
		Daemon: DaemonConfig{
			Interval:     "30m",
			PackagesFile: "~/pkgs.toml",
			CacheFile:    "/var/lib/aurbuild/cache.json",
			LogDir:       "",
		},
		Notify: NotifyConfig{Command: "mail -s built root"},
	}

	settings, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if settings.AURURL != "https://aur.example.org" {
		t.Errorf("unexpected AUR URL %q", settings.AURURL)
	}
	if settings.FetchTimeout != 45*time.Second {
		t.Errorf("expected 45s timeout, got %v", settings.FetchTimeout)
	}
	if settings.PollInterval != 30*time.Minute {
		t.Errorf("expected 30m interval, got %v", settings.PollInterval)
	}
	if settings.PackagesFile != filepath.Join(home, "pkgs.toml") {
		t.Errorf("expected expanded packages path, got %q", settings.PackagesFile)
	}
	if settings.CacheFile != "/var/lib/aurbuild/cache.json" {
		t.Errorf("unexpected cache path %q", settings.CacheFile)
	}
	if settings.LogDir != "" {
		t.Errorf("expected empty log dir, got %q", settings.LogDir)
	}
	if settings.NotifyCommand != "mail -s built root" {
		t.Errorf("unexpected notify command %q", settings.NotifyCommand)
	}
}

func TestResolveRejectsInvalidConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Daemon.Interval = "whenever"

	if _, err := cfg.Resolve(); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestFindConfigPathHonorsEnvOverride(t *testing.T) {
	t.Setenv("AURBUILD_CONFIG", "/etc/aurbuild/config.yaml")

	path, err := FindConfigPath()
	if err != nil {
		t.Fatalf("FindConfigPath failed: %v", err)
	}
	if path != "/etc/aurbuild/config.yaml" {
		t.Errorf("expected env override path, got %q", path)
	}
}

func TestPathAccessorsExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir failed: %v", err)
	}

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Daemon.PackagesFile = "~/pkgs.toml"
	cfg.Daemon.CacheFile = "~/cache.json"
	cfg.Daemon.LogDir = "~/logs"

	pkgs, err := cfg.PackagesPath()
	if err != nil {
		t.Fatalf("PackagesPath failed: %v", err)
	}
	if pkgs != filepath.Join(home, "pkgs.toml") {
		t.Errorf("expected expanded packages path, got %q", pkgs)
	}

	cache, err := cfg.CachePath()
	if err != nil {
		t.Fatalf("CachePath failed: %v", err)
	}
	if cache != filepath.Join(home, "cache.json") {
		t.Errorf("expected expanded cache path, got %q", cache)
	}

	logs, err := cfg.BuildLogDir()
	if err != nil {
		t.Fatalf("BuildLogDir failed: %v", err)
	}
	if logs != filepath.Join(home, "logs") {
		t.Errorf("expected expanded log dir, got %q", logs)
	}
}

func TestBuildLogDirUnsetIsEmpty(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Daemon.LogDir = ""

	dir, err := cfg.BuildLogDir()
	if err != nil {
		t.Fatalf("BuildLogDir failed: %v", err)
	}
	if dir != "" {
		t.Errorf("expected empty log dir, got %q", dir)
	}
}
