package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrDisallowed is wrapped by robots rejections.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Kind classifies a failed fetch.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindNetwork    Kind = "network"
	KindHTTPStatus Kind = "http_status"
	KindTooLarge   Kind = "too_large"
	KindRobots     Kind = "robots"
)

// FetchError describes why a URL could not be fetched.
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case KindTooLarge:
		return fmt.Sprintf("fetch %s: body exceeds limit", e.URL)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying later may succeed.
func (e *FetchError) Temporary() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindHTTPStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

// AsFetchError unwraps err into a *FetchError when possible.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func classify(rawURL string, err error) *FetchError {
	if fe, ok := AsFetchError(err); ok {
		return fe
	}
	kind := KindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}
