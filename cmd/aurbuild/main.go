package main

import (
	"fmt"
	"os"

	"github.com/aurbuild/aurbuild/internal/common/config"
	"github.com/aurbuild/aurbuild/internal/common/logger"
	"github.com/aurbuild/aurbuild/internal/common/output"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	exitUsage   = 1 // bad flags or arguments
	exitStartup = 2 // unreadable config, cache, or packages file
	exitAborted = 3 // stopped by SIGINT or SIGTERM
	exitRuntime = 4 // operation ran and failed
)

var (
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "aurbuild",
	Short: "AUR package build bot",
	Long: `aurbuild tracks AUR packages and runs your build command whenever their
sources change upstream. Track packages in a TOML file, run the daemon, and
every completed build is remembered so nothing is built twice.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Configure logging based on flags
		if verbose {
			logger.SetVerbose(true)
		}
		if quiet {
			logger.SetQuiet(true)
		}
		if noColor {
			output.NoColor()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// loadSettings resolves the app configuration for a command. The --config
// flag wins over $AURBUILD_CONFIG and the search path. Any failure is fatal.
func loadSettings() *config.Settings {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFrom(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(exitStartup)
	}

	settings, err := cfg.Resolve()
	if err != nil {
		logger.Error("invalid config: %v", err)
		os.Exit(exitStartup)
	}
	return settings
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}
