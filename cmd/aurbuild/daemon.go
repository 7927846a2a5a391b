package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurbuild/aurbuild/internal/aur"
	"github.com/aurbuild/aurbuild/internal/autobuild"
	"github.com/aurbuild/aurbuild/internal/common/logger"
	"github.com/aurbuild/aurbuild/internal/snapshot"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Poll tracked packages and build on upstream changes",
	Long: `Run the poll loop until interrupted.

Each pass re-reads the packages file, fetches metadata for every tracked
package in declaration order, and builds the ones whose sources changed
upstream. Completed builds are recorded so they are not repeated.

Signals:
  SIGUSR1          Wake a sleeping daemon for an immediate pass
  SIGINT, SIGTERM  Stop after the package currently being processed`,
	Run: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	settings := loadSettings()

	if err := logger.Default().EnableFileLogging(); err != nil {
		logger.Warn("file logging disabled: %v", err)
	}
	defer logger.Default().Close()

	cache, err := autobuild.LoadCache(settings.CacheFile)
	if err != nil {
		logger.Error("loading cache: %v", err)
		os.Exit(exitStartup)
	}

	// A broken packages file should stop the daemon here, not on pass one
	if _, err := autobuild.LoadPackages(settings.PackagesFile); err != nil {
		logger.Error("loading packages file: %v", err)
		os.Exit(exitStartup)
	}

	var builderOpts []autobuild.BuilderOption
	if settings.LogDir != "" {
		builderOpts = append(builderOpts, autobuild.WithLogDir(settings.LogDir))
	}

	loop := autobuild.NewLoop(settings.PackagesFile, cache,
		autobuild.WithClient(aur.NewClientWithOptions(settings.AURURL, settings.FetchTimeout)),
		autobuild.WithFetcher(snapshot.NewFetcher(settings.AURURL)),
		autobuild.WithBuilder(autobuild.NewBuilder(builderOpts...)),
		autobuild.WithNotifier(autobuild.NewNotifier(settings.NotifyCommand)),
		autobuild.WithInterval(settings.PollInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGUSR1)
	defer signal.Stop(wake)
	go func() {
		for range wake {
			loop.Wake()
		}
	}()

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted, shutting down")
		os.Exit(exitAborted)
	}
	logger.Error("daemon stopped: %v", err)
	os.Exit(exitRuntime)
}
