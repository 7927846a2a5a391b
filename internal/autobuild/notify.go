package autobuild

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNotifyFailed is returned when the notify command exits non-zero
var ErrNotifyFailed = errors.New("notify command failed")

// Result classifies a build outcome for notification
type Result string

const (
	// ResultSuccess means the build (and any commit command) succeeded
	ResultSuccess Result = "success"
	// ResultBuildFailed means the snapshot fetch or build command failed
	ResultBuildFailed Result = "build-failed"
	// ResultCommitFailed means the build succeeded but the commit command failed
	ResultCommitFailed Result = "commit-failed"
)

// Event describes one build outcome handed to the notify command
type Event struct {
	Package  string
	Version  string
	Result   Result
	Duration time.Duration
	LogPath  string
}

// Notifier invokes an external command after each build result. The
// command receives the outcome in AURBUILD_* environment variables;
// composing mail or chat messages is its business, not aurbuild's.
type Notifier struct {
	command string
}

// NewNotifier creates a Notifier for the given shell command.
// An empty command disables notification.
func NewNotifier(command string) *Notifier {
	return &Notifier{command: command}
}

// Notify runs the notify command with the event exported in the
// environment. Unset event fields export as empty strings.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if n.command == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", n.command)
	cmd.Env = append(os.Environ(),
		"AURBUILD_PACKAGE="+ev.Package,
		"AURBUILD_VERSION="+ev.Version,
		"AURBUILD_RESULT="+string(ev.Result),
		"AURBUILD_DURATION="+strconv.FormatInt(int64(ev.Duration.Seconds()), 10),
		"AURBUILD_LOG="+ev.LogPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Join(ErrNotifyFailed, errors.New(msg))
		}
		return fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	return nil
}
