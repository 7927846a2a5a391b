package autobuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aurbuild/aurbuild/internal/aur"
	"github.com/aurbuild/aurbuild/internal/common/logger"
	"github.com/aurbuild/aurbuild/internal/snapshot"
)

// ErrMaintainerMismatch is returned when the remote maintainer differs
// from the configured one. The check fails closed: a hijacked or
// orphaned upstream package is never built.
var ErrMaintainerMismatch = errors.New("maintainer mismatch")

// DefaultInterval is the sleep between passes when none is configured
const DefaultInterval = time.Hour

// MetadataClient fetches remote package metadata
type MetadataClient interface {
	Info(ctx context.Context, name string) (*aur.Metadata, error)
}

// SourceFetcher downloads and unpacks a package's source snapshot into
// destDir, returning the directory to build in
type SourceFetcher interface {
	Extract(ctx context.Context, md *aur.Metadata, destDir string) (string, error)
}

// State classifies a package's evaluation without building it
type State string

const (
	StateUpToDate           State = "up to date"
	StateBuildNeeded        State = "build needed"
	StateMaintainerMismatch State = "maintainer mismatch"
	StateNotFound           State = "not found"
	StateError              State = "error"
)

// CheckResult is the outcome of evaluating a single package
type CheckResult struct {
	// Package is the tracked package name
	Package string
	// State classifies the evaluation
	State State
	// Metadata holds the fetched metadata when the fetch succeeded
	Metadata *aur.Metadata
	// Err carries the failure for StateError, StateNotFound, and
	// StateMaintainerMismatch
	Err error
}

// Loop drives the poll/build cycle: one pass evaluates every tracked
// package in declaration order, building and recording the ones whose
// upstream changed. Packages are processed strictly one at a time; the
// build command for one package may consume the whole machine.
type Loop struct {
	client       MetadataClient
	fetcher      SourceFetcher
	builder      *Builder
	notifier     *Notifier
	cache        *Cache
	packagesPath string
	interval     time.Duration
	wake         chan struct{}
	nowFunc      func() time.Time
}

// LoopOption is a functional option for configuring Loop
type LoopOption func(*Loop)

// WithClient sets the metadata client
func WithClient(c MetadataClient) LoopOption {
	return func(l *Loop) {
		l.client = c
	}
}

// WithFetcher sets the source fetcher
func WithFetcher(f SourceFetcher) LoopOption {
	return func(l *Loop) {
		l.fetcher = f
	}
}

// WithBuilder sets the build runner
func WithBuilder(b *Builder) LoopOption {
	return func(l *Loop) {
		l.builder = b
	}
}

// WithNotifier sets the notification hook
func WithNotifier(n *Notifier) LoopOption {
	return func(l *Loop) {
		l.notifier = n
	}
}

// WithInterval sets the sleep between passes
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.interval = d
	}
}

// WithNowFunc sets a custom time function for testing
func WithNowFunc(fn func() time.Time) LoopOption {
	return func(l *Loop) {
		l.nowFunc = fn
	}
}

// NewLoop creates a loop over the packages file at packagesPath, recording
// successful builds in cache. Collaborators not supplied through options
// get production defaults against the public AUR.
func NewLoop(packagesPath string, cache *Cache, opts ...LoopOption) *Loop {
	l := &Loop{
		cache:        cache,
		packagesPath: packagesPath,
		interval:     DefaultInterval,
		wake:         make(chan struct{}, 1),
		nowFunc:      time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.client == nil {
		l.client = aur.NewClient()
	}
	if l.fetcher == nil {
		l.fetcher = snapshot.NewFetcher(aur.DefaultBaseURL)
	}
	if l.builder == nil {
		l.builder = NewBuilder()
	}
	if l.notifier == nil {
		l.notifier = NewNotifier("")
	}

	return l
}

// Run executes passes until ctx is canceled, sleeping the configured
// interval between them. Wake cuts the sleep short so edits to the
// packages file take effect without waiting out the interval.
func (l *Loop) Run(ctx context.Context) error {
	logger.Info("polling %s every %s", l.packagesPath, l.interval)

	for {
		l.runPass(ctx)

		if err := l.sleep(ctx); err != nil {
			return err
		}
	}
}

// Wake interrupts the inter-pass sleep, starting the next pass early.
// Safe to call at any time; wakes are coalesced.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// sleep blocks until the interval elapses, a wake arrives, or ctx is
// canceled
func (l *Loop) sleep(ctx context.Context) error {
	logger.Debug("sleeping %s until next pass", l.interval)

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-l.wake:
		logger.Info("wake signal received, starting next pass early")
		return nil
	}
}

// runPass re-reads the packages file and processes every package once,
// in declaration order. Per-package failures are logged and never abort
// the pass: each package is independent and stays eligible for the next
// pass.
func (l *Loop) runPass(ctx context.Context) {
	pkgs, err := LoadPackages(l.packagesPath)
	if err != nil {
		logger.Error("loading packages file: %v (skipping pass)", err)
		return
	}
	if pkgs.Len() == 0 {
		logger.Warn("no packages configured in %s", l.packagesPath)
		return
	}

	logger.Debug("starting pass over %d packages", pkgs.Len())
	for _, name := range pkgs.Names() {
		if ctx.Err() != nil {
			return
		}
		cfg, _ := pkgs.Get(name)

		result, err := l.ProcessPackage(ctx, name, cfg, false)
		switch {
		case err == nil && result == nil:
			logger.Debug("%s: up to date", name)
		case err == nil:
			logger.Info("%s: built and recorded in %s", name, result.Duration.Round(time.Millisecond))
		case errors.Is(err, ErrMaintainerMismatch):
			logger.Warn("%s: %v (skipping)", name, err)
		case errors.Is(err, aur.ErrNotFound):
			logger.Warn("%s: %v", name, err)
		case errors.Is(err, ErrCommitFailed):
			logger.Error("%s: %v (build recorded)", name, err)
		default:
			logger.Error("%s: %v", name, err)
		}
	}
}

// ProcessPackage runs the full cycle for one package: fetch metadata,
// check maintainer and freshness, download and build, record on success.
// A nil result with a nil error means no build was needed. force skips
// the freshness check but never the maintainer check. The cache entry is
// recorded and persisted on build success even when the commit command
// fails; a broken commit command would not be fixed by rebuilding.
func (l *Loop) ProcessPackage(ctx context.Context, name string, cfg PackageConfig, force bool) (*BuildResult, error) {
	md, err := l.client.Info(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}

	if !maintainerOK(cfg.Maintainer, md.Maintainer) {
		return nil, fmt.Errorf("%w: expected %q, upstream has %q", ErrMaintainerMismatch, cfg.Maintainer, md.Maintainer)
	}

	cached, ok := l.cache.Get(name)
	if !force && !buildNeeded(md.LastModified, cached, ok, cfg.Force, l.nowFunc().Unix()) {
		return nil, nil
	}

	logger.Info("%s: building version %s", name, md.Version)

	scratch, err := os.MkdirTemp("", "aurbuild-"+name+"-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	sourceDir, err := l.fetcher.Extract(ctx, md, scratch)
	if err != nil {
		l.notify(ctx, Event{Package: name, Version: md.Version, Result: ResultBuildFailed})
		return nil, err
	}

	result, err := l.builder.Run(ctx, name, cfg, sourceDir)
	if err != nil && !errors.Is(err, ErrCommitFailed) {
		ev := Event{Package: name, Version: md.Version, Result: ResultBuildFailed}
		if result != nil {
			ev.Duration = result.Duration
			ev.LogPath = result.LogPath
		}
		l.notify(ctx, ev)
		return result, err
	}

	// Build succeeded; make it durable before anything else can go wrong
	l.cache.Record(name, md.LastModified)
	if perr := l.cache.Persist(); perr != nil {
		logger.Warn("%s: persisting cache: %v", name, perr)
	}

	outcome := ResultSuccess
	if errors.Is(err, ErrCommitFailed) {
		outcome = ResultCommitFailed
	}
	l.notify(ctx, Event{
		Package:  name,
		Version:  md.Version,
		Result:   outcome,
		Duration: result.Duration,
		LogPath:  result.LogPath,
	})

	return result, err
}

// CheckPackage evaluates one package without building or recording
// anything
func (l *Loop) CheckPackage(ctx context.Context, name string, cfg PackageConfig) CheckResult {
	result := CheckResult{Package: name}

	md, err := l.client.Info(ctx, name)
	if err != nil {
		if errors.Is(err, aur.ErrNotFound) {
			result.State = StateNotFound
		} else {
			result.State = StateError
		}
		result.Err = err
		return result
	}
	result.Metadata = md

	if !maintainerOK(cfg.Maintainer, md.Maintainer) {
		result.State = StateMaintainerMismatch
		result.Err = fmt.Errorf("%w: expected %q, upstream has %q", ErrMaintainerMismatch, cfg.Maintainer, md.Maintainer)
		return result
	}

	cached, ok := l.cache.Get(name)
	if buildNeeded(md.LastModified, cached, ok, cfg.Force, l.nowFunc().Unix()) {
		result.State = StateBuildNeeded
	} else {
		result.State = StateUpToDate
	}

	return result
}

// notify hands a build outcome to the notify command. Notification
// failures are logged and never influence the cycle.
func (l *Loop) notify(ctx context.Context, ev Event) {
	if err := l.notifier.Notify(ctx, ev); err != nil {
		logger.Warn("%s: %v", ev.Package, err)
	}
}

// maintainerOK checks the configured maintainer against the remote one.
// No configured maintainer accepts anything; a configured one must match
// exactly, so an orphaned package (empty remote maintainer) mismatches.
func maintainerOK(expected, remote string) bool {
	return expected == "" || expected == remote
}

// buildNeeded decides whether a build is warranted: the package has
// never been built, upstream changed since the recorded build, or a
// force interval is configured and the recorded build is older than it.
func buildNeeded(lastModified, cached int64, cachedExists bool, force int64, now int64) bool {
	if !cachedExists {
		return true
	}
	if lastModified > cached {
		return true
	}
	if force > 0 && now-cached >= force {
		return true
	}
	return false
}
