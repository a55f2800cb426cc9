// Package archive looks up web-archive captures of a URL.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL  = "https://archive.org"
	maxLookupBytes  = 64 * 1024
	timestampLayout = "20060102150405"
)

// ErrNoSnapshot means the archive holds no usable capture of the URL.
var ErrNoSnapshot = errors.New("no archived snapshot")

// Snapshot is the closest capture returned by the availability API.
type Snapshot struct {
	URL        string
	RawURL     string
	Status     int
	CapturedAt time.Time
}

// Cache holds raw availability responses keyed by target URL.
type Cache interface {
	Get(url string) ([]byte, bool)
	Set(url string, data []byte) error
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	cache      Cache
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, baseURL, userAgent string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// WithCache makes Latest answer repeated lookups from cache. Failed cache
// writes are logged at debug level on logger.
func (c *Client) WithCache(cache Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c.cache = cache
	c.logger = logger
	return c
}

// Latest asks the availability API for the most recent capture of target.
func (c *Client) Latest(ctx context.Context, target string) (*Snapshot, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(target); ok {
			return parseAvailability(body)
		}
	}

	endpoint := c.baseURL + "/wayback/available?url=" + url.QueryEscape(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoSnapshot
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive response: %w", err)
	}

	snap, err := parseAvailability(body)
	if c.cache != nil && (err == nil || errors.Is(err, ErrNoSnapshot)) {
		if cerr := c.cache.Set(target, body); cerr != nil {
			c.logger.Debug("Failed to cache archive lookup", "url", target, "error", cerr)
		}
	}
	return snap, err
}

func parseAvailability(body []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("archive returned invalid JSON")
	}

	closest := gjson.GetBytes(body, "archived_snapshots.closest")
	if !closest.Exists() || !closest.Get("available").Bool() {
		return nil, ErrNoSnapshot
	}

	snapURL := closest.Get("url").String()
	if snapURL == "" {
		return nil, ErrNoSnapshot
	}

	status := int(closest.Get("status").Int())
	if status >= 400 {
		return nil, ErrNoSnapshot
	}

	snap := &Snapshot{
		URL:    snapURL,
		RawURL: RawURL(snapURL, closest.Get("timestamp").String()),
		Status: status,
	}
	if ts, err := time.Parse(timestampLayout, closest.Get("timestamp").String()); err == nil {
		snap.CapturedAt = ts
	}
	return snap, nil
}

// RawURL rewrites a snapshot URL to the "id_" variant, which serves the
// original bytes without the archive toolbar.
func RawURL(snapshotURL, timestamp string) string {
	if timestamp == "" {
		return snapshotURL
	}
	marker := "/web/" + timestamp + "/"
	if !strings.Contains(snapshotURL, marker) {
		return snapshotURL
	}
	return strings.Replace(snapshotURL, marker, "/web/"+timestamp+"id_/", 1)
}
