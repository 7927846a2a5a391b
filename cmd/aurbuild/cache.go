package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aurbuild/aurbuild/internal/autobuild"
	"github.com/aurbuild/aurbuild/internal/common/logger"
	"github.com/aurbuild/aurbuild/internal/common/output"
	"github.com/spf13/cobra"
)

var (
	// cacheForget names a single record to drop
	cacheForget string
	// cacheClear drops every record
	cacheClear bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or edit the recorded build stamps",
	Long: `List the lastmodified stamps recorded for completed builds (default),
or drop records so the next pass rebuilds the affected packages.

Examples:
  aurbuild cache               List recorded builds
  aurbuild cache --forget yay  Rebuild yay on the next pass
  aurbuild cache --clear       Rebuild everything on the next pass`,
	Run: runCache,
}

func init() {
	cacheCmd.Flags().StringVar(&cacheForget, "forget", "", "Forget the record for one package")
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "Forget every record")
	cacheCmd.MarkFlagsMutuallyExclusive("forget", "clear")

	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) {
	settings := loadSettings()

	cache, err := autobuild.LoadCache(settings.CacheFile)
	if err != nil {
		logger.Error("loading cache: %v", err)
		os.Exit(exitStartup)
	}

	switch {
	case cacheForget != "":
		if !cache.Forget(cacheForget) {
			logger.Error("no record for %s", cacheForget)
			os.Exit(exitRuntime)
		}
		persistCacheEdit(cache)
		output.PrintSuccess("forgot %s", cacheForget)
	case cacheClear:
		count := cache.Len()
		cache.Clear()
		persistCacheEdit(cache)
		output.PrintSuccess("cleared %d record(s)", count)
	default:
		listCache(cache)
	}
}

// persistCacheEdit writes a cache mutation to disk. Persist never writes
// an empty mapping, so an edit that empties the cache removes the file
// instead.
func persistCacheEdit(cache *autobuild.Cache) {
	var err error
	if cache.Len() == 0 {
		err = cache.Remove()
	} else {
		err = cache.Persist()
	}
	if err != nil {
		logger.Error("persisting cache: %v", err)
		os.Exit(exitRuntime)
	}
}

// listCache prints the recorded builds sorted by package name
func listCache(cache *autobuild.Cache) {
	entries := cache.Entries()
	if len(entries) == 0 {
		logger.Info("no recorded builds")
		return
	}

	fmt.Println()
	output.Header.Println("Recorded Builds")
	fmt.Println()

	for _, e := range entries {
		built := time.Unix(e.Stamp, 0).UTC().Format("2006-01-02 15:04:05 UTC")
		fmt.Printf("  %s  last built source from %s\n", output.FormatPackage(e.Name), built)
	}

	fmt.Println()
	output.Info.Printf("Total: %d recorded build(s)\n", len(entries))
}
