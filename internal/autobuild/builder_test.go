package autobuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuilderRunSuccess(t *testing.T) {
	sourceDir := t.TempDir()
	marker := filepath.Join(sourceDir, "PKGBUILD")
	if err := os.WriteFile(marker, []byte("pkgname=hello\n"), 0644); err != nil {
		t.Fatalf("failed to create marker file: %v", err)
	}

	builder := NewBuilder()
	cfg := PackageConfig{BuildCmd: "cat PKGBUILD"}

	result, err := builder.Run(context.Background(), "hello", cfg, sourceDir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Success {
		t.Error("expected Success to be true")
	}
	// Output proves the command ran inside the source tree
	if !strings.Contains(result.Output, "pkgname=hello") {
		t.Errorf("expected output to contain marker content, got %q", result.Output)
	}
	if result.Duration <= 0 {
		t.Errorf("expected positive duration, got %v", result.Duration)
	}
}

func TestBuilderRunFailureSkipsCommit(t *testing.T) {
	sourceDir := t.TempDir()

	builder := NewBuilder()
	cfg := PackageConfig{
		BuildCmd:  "echo compiling; exit 3",
		CommitCmd: "touch committed",
	}

	result, err := builder.Run(context.Background(), "hello", cfg, sourceDir)
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed, got %v", err)
	}
	if result.Success {
		t.Error("expected Success to be false")
	}
	if !strings.Contains(result.Output, "compiling") {
		t.Errorf("expected output before failure to be captured, got %q", result.Output)
	}

	if _, err := os.Stat(filepath.Join(sourceDir, "committed")); !os.IsNotExist(err) {
		t.Error("commit command must not run after a failed build")
	}
}

func TestBuilderRunCommitFailure(t *testing.T) {
	sourceDir := t.TempDir()

	builder := NewBuilder()
	cfg := PackageConfig{
		BuildCmd:  "echo built",
		CommitCmd: "echo push rejected >&2; exit 1",
	}

	result, err := builder.Run(context.Background(), "hello", cfg, sourceDir)
	if !errors.Is(err, ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
	if !result.Success {
		t.Error("expected Success to stay true when only the commit fails")
	}
	if !strings.Contains(result.Output, "push rejected") {
		t.Errorf("expected commit stderr in output, got %q", result.Output)
	}
}

func TestBuilderRunCombinesStdoutStderr(t *testing.T) {
	builder := NewBuilder()
	cfg := PackageConfig{BuildCmd: "echo to-stdout; echo to-stderr >&2"}

	result, err := builder.Run(context.Background(), "hello", cfg, t.TempDir())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(result.Output, "to-stdout") {
		t.Errorf("expected stdout in output, got %q", result.Output)
	}
	if !strings.Contains(result.Output, "to-stderr") {
		t.Errorf("expected stderr in output, got %q", result.Output)
	}
}

func TestBuilderRunStdinSuppressed(t *testing.T) {
	builder := NewBuilder()
	// cat would block forever on an interactive stdin; against the null
	// device it exits immediately
	cfg := PackageConfig{BuildCmd: "cat"}

	done := make(chan error, 1)
	go func() {
		_, err := builder.Run(context.Background(), "hello", cfg, t.TempDir())
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("build command blocked on stdin")
	}
}

func TestBuilderRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	builder := NewBuilder()
	cfg := PackageConfig{BuildCmd: "sleep 30"}

	start := time.Now()
	_, err := builder.Run(ctx, "hello", cfg, t.TempDir())
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("expected ErrBuildFailed after cancellation, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("expected cancellation to kill the command, took %v", elapsed)
	}
}

func TestBuilderRunWritesLogFile(t *testing.T) {
	logDir := t.TempDir()

	builder := NewBuilder(WithLogDir(logDir))
	cfg := PackageConfig{BuildCmd: "echo logged line"}

	result, err := builder.Run(context.Background(), "spotify", cfg, t.TempDir())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.LogPath == "" {
		t.Fatal("expected LogPath to be set")
	}
	if filepath.Dir(result.LogPath) != filepath.Join(logDir, "spotify") {
		t.Errorf("expected log under %s, got %s", filepath.Join(logDir, "spotify"), result.LogPath)
	}
	if !strings.HasSuffix(result.LogPath, ".log") {
		t.Errorf("expected .log suffix, got %s", result.LogPath)
	}

	data, err := os.ReadFile(result.LogPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "logged line") {
		t.Errorf("expected command output in log file, got %q", string(data))
	}
}

func TestBuilderRunStream(t *testing.T) {
	var stream bytes.Buffer

	builder := NewBuilder(WithStream(&stream))
	cfg := PackageConfig{BuildCmd: "echo streamed"}

	result, err := builder.Run(context.Background(), "hello", cfg, t.TempDir())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(stream.String(), "streamed") {
		t.Errorf("expected output on the stream writer, got %q", stream.String())
	}
	// Capture still works alongside streaming
	if !strings.Contains(result.Output, "streamed") {
		t.Errorf("expected output to also be captured, got %q", result.Output)
	}
}
