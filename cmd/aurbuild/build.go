package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurbuild/aurbuild/internal/aur"
	"github.com/aurbuild/aurbuild/internal/autobuild"
	"github.com/aurbuild/aurbuild/internal/common/logger"
	"github.com/aurbuild/aurbuild/internal/common/output"
	"github.com/aurbuild/aurbuild/internal/snapshot"
	"github.com/spf13/cobra"
)

// buildForce bypasses the freshness check
var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build [package...]",
	Short: "Fetch and build packages now",
	Long: `Run one fetch-build-record cycle for the named packages, outside the
daemon. Build output is shown as it is produced.

Arguments are configured package names or glob patterns; with no arguments
every configured package is considered. Packages whose record is current
are skipped unless --force is given. The maintainer check always applies.

Examples:
  aurbuild build              Build everything that changed upstream
  aurbuild build yay          Build one package if it changed
  aurbuild build --force yay  Build it regardless`,
	Run: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "Build even when the record is current")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	settings := loadSettings()

	pkgs, err := autobuild.LoadPackages(settings.PackagesFile)
	if err != nil {
		logger.Error("loading packages file: %v", err)
		os.Exit(exitStartup)
	}

	selected, err := pkgs.Select(args)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(exitUsage)
	}
	if len(selected) == 0 {
		logger.Info("no packages configured in %s", settings.PackagesFile)
		return
	}

	cache, err := autobuild.LoadCache(settings.CacheFile)
	if err != nil {
		logger.Error("loading cache: %v", err)
		os.Exit(exitStartup)
	}

	builderOpts := []autobuild.BuilderOption{autobuild.WithStream(os.Stdout)}
	if settings.LogDir != "" {
		builderOpts = append(builderOpts, autobuild.WithLogDir(settings.LogDir))
	}

	var fetcherOpts []snapshot.FetcherOption
	if output.IsTerminalFile(os.Stderr) {
		fetcherOpts = append(fetcherOpts, snapshot.WithProgress(os.Stderr))
	}

	loop := autobuild.NewLoop(settings.PackagesFile, cache,
		autobuild.WithClient(aur.NewClientWithOptions(settings.AURURL, settings.FetchTimeout)),
		autobuild.WithFetcher(snapshot.NewFetcher(settings.AURURL, fetcherOpts...)),
		autobuild.WithBuilder(autobuild.NewBuilder(builderOpts...)),
		autobuild.WithNotifier(autobuild.NewNotifier(settings.NotifyCommand)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var failures int
	for _, name := range selected {
		cfg, _ := pkgs.Get(name)
		result, err := loop.ProcessPackage(ctx, name, cfg, buildForce)

		switch {
		case err == nil && result == nil:
			output.PrintInfo("%s is up to date", name)
		case err == nil:
			output.PrintSuccess("%s built in %s", name, result.Duration.Round(time.Millisecond))
		case errors.Is(err, autobuild.ErrCommitFailed):
			failures++
			output.PrintWarning("%s: %v (build recorded)", name, err)
		default:
			failures++
			output.PrintError("%s: %v", name, err)
			if result != nil && result.LogPath != "" {
				output.Info.Printf("  log: %s\n", result.LogPath)
			}
		}

		if ctx.Err() != nil {
			output.PrintWarning("interrupted")
			os.Exit(exitAborted)
		}
	}

	if failures > 0 {
		os.Exit(exitRuntime)
	}
}
