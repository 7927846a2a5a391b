package autobuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultsSection is the reserved table name that supplies values for
// keys a package section leaves unset
const defaultsSection = "defaults"

// Error variables for packages file errors
var (
	// ErrPackagesFileNotFound is returned when the packages file does not exist
	ErrPackagesFileNotFound = errors.New("packages file not found")
	// ErrMissingBuildCmd is returned when a package has no build command
	// after the defaults merge
	ErrMissingBuildCmd = errors.New("missing required key: build_cmd")
	// ErrInvalidForce is returned when a force interval is negative
	ErrInvalidForce = errors.New("force must be a non-negative number of seconds")
)

// PackageConfig is one tracked package's declaration from the packages
// file. Zero values mean the key was not configured.
type PackageConfig struct {
	// BuildCmd is the shell command run against the unpacked source
	BuildCmd string `toml:"build_cmd"`
	// CommitCmd is an optional shell command run after a successful build
	CommitCmd string `toml:"commit_cmd,omitempty"`
	// Maintainer is the expected AUR maintainer; a mismatch blocks the build
	Maintainer string `toml:"maintainer,omitempty"`
	// Force is the maximum staleness in seconds before a rebuild is
	// triggered even without an upstream change; 0 disables forcing
	Force int64 `toml:"force,omitempty"`
}

// Packages is the set of tracked packages in file declaration order
type Packages struct {
	configs map[string]PackageConfig
	names   []string
}

// LoadPackages reads and validates the packages file. Every top-level
// TOML table except [defaults] declares one tracked package; unknown keys
// inside a table are ignored. An empty file is valid and yields zero
// packages.
func LoadPackages(path string) (*Packages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackagesFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read packages file: %w", err)
	}

	var sections map[string]PackageConfig
	md, err := toml.Decode(string(data), &sections)
	if err != nil {
		return nil, fmt.Errorf("failed to parse packages file: %w", err)
	}

	defaults := sections[defaultsSection]

	pkgs := &Packages{
		configs: make(map[string]PackageConfig),
	}
	for _, key := range md.Keys() {
		// Only top-level tables name packages; deeper keys are their contents
		if len(key) != 1 {
			continue
		}
		name := key[0]
		if name == defaultsSection {
			continue
		}

		cfg := applyDefaults(sections[name], defaults, md, name)
		if err := validatePackage(name, cfg); err != nil {
			return nil, err
		}

		pkgs.configs[name] = cfg
		pkgs.names = append(pkgs.names, name)
	}

	return pkgs, nil
}

// applyDefaults fills keys the package section leaves unset from the
// [defaults] table. A key the section defines explicitly always wins,
// even when set to its zero value.
func applyDefaults(cfg, defaults PackageConfig, md toml.MetaData, name string) PackageConfig {
	if !md.IsDefined(name, "build_cmd") {
		cfg.BuildCmd = defaults.BuildCmd
	}
	if !md.IsDefined(name, "commit_cmd") {
		cfg.CommitCmd = defaults.CommitCmd
	}
	if !md.IsDefined(name, "maintainer") {
		cfg.Maintainer = defaults.Maintainer
	}
	if !md.IsDefined(name, "force") {
		cfg.Force = defaults.Force
	}
	return cfg
}

// validatePackage checks a merged package declaration
func validatePackage(name string, cfg PackageConfig) error {
	if cfg.BuildCmd == "" {
		return fmt.Errorf("package %s: %w", name, ErrMissingBuildCmd)
	}
	if cfg.Force < 0 {
		return fmt.Errorf("package %s: %w: got %d", name, ErrInvalidForce, cfg.Force)
	}
	return nil
}

// Names returns the package names in file declaration order
func (p *Packages) Names() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// Get returns the declaration for a package
func (p *Packages) Get(name string) (PackageConfig, bool) {
	cfg, ok := p.configs[name]
	return cfg, ok
}

// Len returns the number of tracked packages
func (p *Packages) Len() int {
	return len(p.names)
}

// Select resolves command-line arguments against the tracked packages.
// Each argument is an exact package name or a glob pattern; an argument
// matching no configured package is an error. No arguments selects every
// package. The result keeps file declaration order with no duplicates.
func (p *Packages) Select(args []string) ([]string, error) {
	if len(args) == 0 {
		return p.Names(), nil
	}

	chosen := make(map[string]bool)
	for _, arg := range args {
		matched := false
		for _, name := range p.names {
			if matchName(name, arg) {
				chosen[name] = true
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no configured package matches %q", arg)
		}
	}

	selected := make([]string, 0, len(chosen))
	for _, name := range p.names {
		if chosen[name] {
			selected = append(selected, name)
		}
	}

	return selected, nil
}

// matchName checks a package name against a selection argument.
// Arguments without glob metacharacters match exactly.
func matchName(name, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return name == pattern
	}

	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}
