package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aurbuild/aurbuild/internal/aur"
	"github.com/aurbuild/aurbuild/internal/autobuild"
	"github.com/aurbuild/aurbuild/internal/common/logger"
	"github.com/aurbuild/aurbuild/internal/common/output"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [package...]",
	Short: "Show which tracked packages need a build",
	Long: `Evaluate tracked packages against the AUR without building or recording
anything.

Arguments are configured package names or glob patterns; with no arguments
every configured package is checked.

Examples:
  aurbuild check              Check every configured package
  aurbuild check yay          Check one package
  aurbuild check 'python-*'   Check packages matching a pattern`,
	Run: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
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

	loop := autobuild.NewLoop(settings.PackagesFile, cache,
		autobuild.WithClient(aur.NewClientWithOptions(settings.AURURL, settings.FetchTimeout)),
	)

	fmt.Println()
	output.Header.Println("Package Check")
	fmt.Println()

	var needBuild, failed int
	for _, name := range selected {
		cfg, _ := pkgs.Get(name)
		result := loop.CheckPackage(context.Background(), name, cfg)
		printCheckResult(result)

		switch result.State {
		case autobuild.StateBuildNeeded:
			needBuild++
		case autobuild.StateError:
			failed++
		}
	}

	fmt.Println()
	if needBuild > 0 {
		output.Info.Printf("%d of %d package(s) need a build\n", needBuild, len(selected))
	} else {
		output.Success.Println("All packages are up to date")
	}
	if failed > 0 {
		output.Warning.Printf("%d package(s) could not be checked\n", failed)
		os.Exit(exitRuntime)
	}
}

// printCheckResult renders one evaluation line
func printCheckResult(r autobuild.CheckResult) {
	state := output.FormatState(string(r.State))
	name := output.FormatPackage(r.Package)

	switch r.State {
	case autobuild.StateUpToDate, autobuild.StateBuildNeeded:
		fmt.Printf("  %s %s %s\n", state, name, r.Metadata.Version)
	case autobuild.StateMaintainerMismatch:
		fmt.Printf("  %s %s upstream maintainer is %q\n", state, name, r.Metadata.Maintainer)
	default:
		fmt.Printf("  %s %s %v\n", state, name, r.Err)
	}
}
