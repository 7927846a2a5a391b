// Package aur queries the AUR RPC interface for package metadata.
package aur

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aurbuild/aurbuild/internal/common/version"
)

// DefaultBaseURL is the AUR endpoint used when none is configured
const DefaultBaseURL = "https://aur.archlinux.org"

// SupportedRPCVersion is the only envelope version this client accepts
const SupportedRPCVersion = 5

var (
	// ErrProtocol indicates a malformed or unsupported remote response
	ErrProtocol = errors.New("unsupported AUR RPC response")
	// ErrNotFound indicates the package does not exist upstream
	ErrNotFound = errors.New("package not found in AUR")
)

// Metadata is one package's RPC info result. Unknown response fields are
// ignored and JSON field matching is case-insensitive, so older RPC
// spellings decode into the same struct. A null maintainer (orphaned
// package) decodes to the empty string.
type Metadata struct {
	ID             int64  `json:"ID"`
	Name           string `json:"Name"`
	PackageBase    string `json:"PackageBase"`
	Version        string `json:"Version"`
	Description    string `json:"Description"`
	URL            string `json:"URL"`
	URLPath        string `json:"URLPath"`
	Maintainer     string `json:"Maintainer"`
	NumVotes       int    `json:"NumVotes"`
	OutOfDate      int64  `json:"OutOfDate"`
	FirstSubmitted int64  `json:"FirstSubmitted"`
	LastModified   int64  `json:"LastModified"`
}

// rpcEnvelope is the wire framing around RPC results
type rpcEnvelope struct {
	Version     int             `json:"version"`
	Type        string          `json:"type"`
	ResultCount int             `json:"resultcount"`
	Results     json.RawMessage `json:"results"`
	Error       string          `json:"error"`
}

// Client handles communication with the AUR RPC interface
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates an AUR client with the default endpoint and timeout
func NewClient() *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		UserAgent: "aurbuild/" + version.Short(),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithOptions creates an AUR client with a custom endpoint and
// fetch timeout; zero values keep the defaults
func NewClientWithOptions(baseURL string, timeout time.Duration) *Client {
	client := NewClient()
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	return client
}

// Info fetches the metadata for a single package by exact name.
func (c *Client) Info(ctx context.Context, name string) (*Metadata, error) {
	infoURL := fmt.Sprintf("%s/rpc.php?type=info&arg=%s", c.BaseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProtocol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseInfoResponse(body)
}

// parseInfoResponse validates the envelope and decodes the result set.
// The results field is an array in current RPC versions but a bare object
// in older ones; both shapes are accepted.
func parseInfoResponse(body []byte) (*Metadata, error) {
	var envelope rpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	if envelope.Type == "error" {
		msg := envelope.Error
		if msg == "" {
			// Legacy error envelopes carry the message in results
			_ = json.Unmarshal(envelope.Results, &msg)
		}
		return nil, fmt.Errorf("%w: remote error: %s", ErrProtocol, msg)
	}

	if envelope.Version != SupportedRPCVersion {
		return nil, fmt.Errorf("%w: rpc version %d", ErrProtocol, envelope.Version)
	}

	results := bytes.TrimSpace(envelope.Results)
	switch {
	case len(results) == 0 || string(results) == "null":
		return nil, ErrNotFound
	case results[0] == '[':
		var list []Metadata
		if err := json.Unmarshal(results, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if len(list) == 0 {
			return nil, ErrNotFound
		}
		return &list[0], nil
	case results[0] == '{':
		var md Metadata
		if err := json.Unmarshal(results, &md); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return &md, nil
	default:
		return nil, fmt.Errorf("%w: unexpected results shape", ErrProtocol)
	}
}

// SnapshotURL returns the absolute URL of the package's source snapshot
func (c *Client) SnapshotURL(md *Metadata) string {
	return c.BaseURL + md.URLPath
}
