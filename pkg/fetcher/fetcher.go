// Package fetcher performs polite, bounded HTTP GETs for the crawler.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

const (
	DefaultUserAgent    = "mywi/1.0 (+https://github.com/dtnitsch/mywi)"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// Options tunes a Fetcher. Zero values select defaults; RatePerHost <= 0
// disables throttling.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	MaxBodyBytes  int64
	RatePerHost   float64
	RespectRobots bool
}

// Response is a fetched document with its body decoded to UTF-8.
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

type Fetcher struct {
	client *http.Client
	opts   Options
	robots *RobotsChecker

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewFetcher(opts Options) *Fetcher {
	return NewFetcherWithClient(&http.Client{}, opts)
}

// NewFetcherWithClient uses client for page and robots.txt requests.
func NewFetcherWithClient(client *http.Client, opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	f := &Fetcher{
		client:   client,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
	if opts.RespectRobots {
		f.robots = NewRobotsChecker(client, opts.UserAgent)
	}
	return f
}

// Get fetches rawURL. A status >= 400 returns both the response and a
// *FetchError of kind http_status so callers can keep the status code.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, classify(rawURL, err)
		}
		if !allowed {
			return nil, &FetchError{Kind: KindRobots, URL: rawURL, Err: ErrDisallowed}
		}
	}

	if err := f.wait(ctx, rawURL); err != nil {
		return nil, classify(rawURL, err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(rawURL, fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(raw)) > f.opts.MaxBodyBytes {
		return nil, &FetchError{Kind: KindTooLarge, URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	out := &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        decode(raw, contentType),
		Duration:    time.Since(start),
	}

	if resp.StatusCode >= 400 {
		return out, &FetchError{Kind: KindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}
	return out, nil
}

// Document fetches rawURL and parses it with goquery.
func (f *Fetcher) Document(ctx context.Context, rawURL string) (*goquery.Document, *Response, error) {
	resp, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, resp, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, resp, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, resp, nil
}

func (f *Fetcher) wait(ctx context.Context, rawURL string) error {
	if f.opts.RatePerHost <= 0 {
		return nil
	}
	host := urlnorm.Host(rawURL)

	f.mu.Lock()
	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.opts.RatePerHost), 1)
		f.limiters[host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

// decode converts body to UTF-8 using the Content-Type charset or the
// document's meta declaration. Undecodable input is returned unchanged.
func decode(body []byte, contentType string) []byte {
	if len(body) == 0 || (strings.Contains(strings.ToLower(contentType), "utf-8")) {
		return body
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}
