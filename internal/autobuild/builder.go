package autobuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Error variables for build command failures
var (
	// ErrBuildFailed is returned when the build command exits non-zero
	ErrBuildFailed = errors.New("build command failed")
	// ErrCommitFailed is returned when the commit command exits non-zero
	// after a successful build
	ErrCommitFailed = errors.New("commit command failed")
)

// BuildResult holds the outcome of one build invocation. Success refers
// to the build command alone: a failed commit command still leaves
// Success true and is reported through the returned error.
type BuildResult struct {
	Success  bool
	Duration time.Duration
	Output   string
	LogPath  string
}

// Builder runs the configured build and commit commands for a package.
// Commands run via the shell with standard input suppressed and the
// unpacked source tree as their working directory; the process-wide
// working directory is never changed, so the caller's context survives
// every exit path.
type Builder struct {
	logDir string
	stream io.Writer
}

// BuilderOption is a functional option for configuring Builder
type BuilderOption func(*Builder)

// WithLogDir writes each build's output to <dir>/<package>/<timestamp>.log
// in addition to capturing it. Used by the daemon so unattended builds
// leave a trace.
func WithLogDir(dir string) BuilderOption {
	return func(b *Builder) {
		b.logDir = dir
	}
}

// WithStream additionally streams command output to w as it is produced.
// One-shot builds pass the terminal here.
func WithStream(w io.Writer) BuilderOption {
	return func(b *Builder) {
		b.stream = w
	}
}

// NewBuilder creates a Builder
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes the package's build command in sourceDir and, if the
// build succeeds and a commit command is configured, the commit command
// the same way. A build failure returns ErrBuildFailed and skips the
// commit; a commit failure returns ErrCommitFailed with Success still
// true. Duration covers the build command only.
func (b *Builder) Run(ctx context.Context, name string, cfg PackageConfig, sourceDir string) (*BuildResult, error) {
	result := &BuildResult{}

	var captured bytes.Buffer
	sinks := []io.Writer{&captured}
	if b.stream != nil {
		sinks = append(sinks, b.stream)
	}
	if b.logDir != "" {
		logPath, logFile, err := b.openLogFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open build log: %w", err)
		}
		defer logFile.Close()
		sinks = append(sinks, logFile)
		result.LogPath = logPath
	}
	out := io.MultiWriter(sinks...)
	defer func() {
		result.Output = captured.String()
	}()

	start := time.Now()
	err := runShell(ctx, cfg.BuildCmd, sourceDir, out)
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	result.Success = true

	if cfg.CommitCmd != "" {
		if err := runShell(ctx, cfg.CommitCmd, sourceDir, out); err != nil {
			return result, fmt.Errorf("%w: %v", ErrCommitFailed, err)
		}
	}

	return result, nil
}

// openLogFile creates the per-build log file under the package's log
// directory, named by the UTC start time
func (b *Builder) openLogFile(name string) (string, *os.File, error) {
	dir := filepath.Join(b.logDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, err
	}

	logPath := filepath.Join(dir, time.Now().UTC().Format("20060102-150405")+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", nil, err
	}

	return logPath, f, nil
}

// runShell executes one command line via the shell with stdout and
// stderr combined into out. Standard input is suppressed, so a command
// that reads it sees EOF instead of hanging.
func runShell(ctx context.Context, command, dir string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
