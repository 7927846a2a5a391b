// Package snapshot downloads and unpacks AUR source snapshots.
package snapshot

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"

	"github.com/aurbuild/aurbuild/internal/aur"
	"github.com/aurbuild/aurbuild/internal/common/version"
)

// ErrFetch indicates a network, decompression, or archive failure
var ErrFetch = errors.New("snapshot fetch failed")

// Fetcher downloads snapshot archives and extracts them into scratch
// directories. Downloads have no deadline; a snapshot is fetched to
// completion or fails.
type Fetcher struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	progress   io.Writer
}

// FetcherOption is a functional option for configuring Fetcher
type FetcherOption func(*Fetcher)

// WithProgress renders a byte progress bar on w while downloading.
// Intended for interactive one-shot builds, not the daemon.
func WithProgress(w io.Writer) FetcherOption {
	return func(f *Fetcher) {
		f.progress = w
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.HTTPClient = c
	}
}

// NewFetcher creates a Fetcher for the given base URL
func NewFetcher(baseURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserAgent:  "aurbuild/" + version.Short(),
		HTTPClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extract downloads the snapshot referenced by md and unpacks it under
// destDir. The compression format is detected from the stream itself, so
// the URL suffix never matters. Returns the directory holding the
// unpacked source tree: destDir/<PackageBase> when the archive provides
// it, the sole top-level directory otherwise, destDir as a last resort.
func (f *Fetcher) Extract(ctx context.Context, md *aur.Metadata, destDir string) (string, error) {
	if md.URLPath == "" {
		return "", fmt.Errorf("%w: metadata for %s has no snapshot path", ErrFetch, md.Name)
	}

	snapshotURL := f.BaseURL + md.URLPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d for %s", ErrFetch, resp.StatusCode, snapshotURL)
	}

	var body io.Reader = resp.Body
	if f.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription(md.Name),
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		body = io.TeeReader(body, bar)
	}

	if err := extractArchive(body, destDir); err != nil {
		return "", err
	}

	return sourceRoot(destDir, md.PackageBase), nil
}

// extractArchive unpacks a possibly-compressed tar stream into destDir
func extractArchive(r io.Reader, destDir string) error {
	br := bufio.NewReader(r)

	decompressed, closeReader, err := newDecompressor(br)
	if err != nil {
		return err
	}
	defer closeReader()

	tr := tar.NewReader(decompressed)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading archive: %v", ErrFetch, err)
		}
		if err := extractEntry(destDir, hdr, tr); err != nil {
			return err
		}
	}

	return nil
}

// newDecompressor sniffs the stream's magic bytes and wraps it in the
// matching decompressor. An unrecognized stream is assumed to be a plain
// tar archive; the tar reader rejects it if it is not.
func newDecompressor(br *bufio.Reader) (io.Reader, func(), error) {
	noop := func() {}

	magic, err := br.Peek(6)
	if err != nil && len(magic) == 0 {
		return nil, noop, fmt.Errorf("%w: empty archive stream", ErrFetch)
	}

	switch {
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: gzip: %v", ErrFetch, err)
		}
		return zr, func() { zr.Close() }, nil
	case len(magic) >= 4 && magic[0] == 0x28 && magic[1] == 0xb5 && magic[2] == 0x2f && magic[3] == 0xfd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: zstd: %v", ErrFetch, err)
		}
		return zr, zr.Close, nil
	case len(magic) >= 6 && magic[0] == 0xfd && magic[1] == '7' && magic[2] == 'z' && magic[3] == 'X' && magic[4] == 'Z' && magic[5] == 0x00:
		zr, err := xz.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: xz: %v", ErrFetch, err)
		}
		return zr, noop, nil
	case len(magic) >= 3 && magic[0] == 'B' && magic[1] == 'Z' && magic[2] == 'h':
		return bzip2.NewReader(br), noop, nil
	default:
		return br, noop, nil
	}
}

// extractEntry materializes a single tar entry under destDir.
// Only directories, regular files, and symlinks are created; everything
// else is skipped.
func extractEntry(destDir string, hdr *tar.Header, r io.Reader) error {
	target, err := securePath(destDir, hdr.Name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()); err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
	case tar.TypeReg:
		// Some archives omit directory entries
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return fmt.Errorf("%w: writing %s: %v", ErrFetch, hdr.Name, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
	case tar.TypeSymlink:
		if err := secureLinkTarget(destDir, target, hdr.Linkname); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
	case tar.TypeLink:
		linkTarget, err := securePath(destDir, hdr.Linkname)
		if err != nil {
			return err
		}
		if err := os.Link(linkTarget, target); err != nil {
			return fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	return nil
}

// securePath joins an archive entry name onto destDir, rejecting entries
// that would land outside it
func securePath(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: archive entry %q has absolute path", ErrFetch, name)
	}

	target := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: archive entry %q escapes extraction root", ErrFetch, name)
	}

	return target, nil
}

// secureLinkTarget rejects symlink entries whose target resolves outside
// destDir
func secureLinkTarget(destDir, linkPath, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: symlink %q has absolute target %q", ErrFetch, linkPath, linkname)
	}

	resolved := filepath.Join(filepath.Dir(linkPath), linkname)
	rel, err := filepath.Rel(destDir, resolved)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: symlink %q escapes extraction root", ErrFetch, linkPath)
	}

	return nil
}

// sourceRoot picks the directory the build should run in
func sourceRoot(destDir, packageBase string) string {
	if packageBase != "" {
		candidate := filepath.Join(destDir, packageBase)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}

	entries, err := os.ReadDir(destDir)
	if err == nil && len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(destDir, entries[0].Name())
	}

	return destDir
}
