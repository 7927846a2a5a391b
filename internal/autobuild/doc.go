// Package autobuild implements the automated rebuild cycle for tracked
// AUR packages.
//
// The package implements:
//   - Tracked package declarations via a TOML packages file
//   - A durable flat JSON cache of last built upstream stamps
//   - Build and commit command execution with captured output
//   - An optional external notification hook per build result
//   - The poll loop tying metadata, cache, fetch, and build together
//
// Tracked packages are declared one TOML table per package; the reserved
// [defaults] table fills keys a package leaves unset. The loop re-reads
// the packages file at the start of every pass, so edits take effect on
// the next pass without a restart.
//
// Usage:
//
//	cache, err := autobuild.LoadCache(cachePath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loop := autobuild.NewLoop(packagesPath, cache)
//	err = loop.Run(ctx)
package autobuild
