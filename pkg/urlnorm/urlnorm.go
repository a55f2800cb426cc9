// Package urlnorm canonicalizes URLs and derives their content-addressed hash.
package urlnorm

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrEmpty         = errors.New("empty url")
	ErrUnsupported   = errors.New("unsupported url scheme")
	ErrMissingHost   = errors.New("url has no host")
	markdownLinkExpr = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
)

// trackingParams are stripped during canonicalization.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"mc_cid":  {},
	"mc_eid":  {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Sanitize performs basic cleanup on URLs to handle common copy-paste issues.
// Removes whitespace, trailing punctuation and markdown link wrappers.
func Sanitize(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	// [click here](https://example.com) -> https://example.com
	if matches := markdownLinkExpr.FindStringSubmatch(cleaned); len(matches) > 1 {
		cleaned = matches[1]
	}

	for _, char := range []string{",", ".", ")", "}", "]", "\"", "'", ">", ";"} {
		cleaned = strings.TrimSuffix(cleaned, char)
	}
	for _, char := range []string{"(", "[", "<", "\"", "'"} {
		cleaned = strings.TrimPrefix(cleaned, char)
	}

	return strings.TrimSpace(cleaned)
}

// Canonicalize returns the canonical form of an http(s) URL: lowercased scheme
// and host, no default port, no fragment, tracking parameters removed and
// remaining parameters sorted.
func Canonicalize(rawURL string) (string, error) {
	cleaned := Sanitize(rawURL)
	if cleaned == "" {
		return "", ErrEmpty
	}

	u, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupported
	}
	if u.Host == "" {
		return "", ErrMissingHost
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = cleanQuery(u.Query())

	return u.String(), nil
}

func cleanQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		lower := strings.ToLower(key)
		if _, tracked := trackingParams[lower]; tracked || strings.HasPrefix(lower, "utm_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, k := range keys {
		for _, v := range values[k] {
			clean.Add(k, v)
		}
	}
	return clean.Encode()
}

// Hash returns the SHA-256 hex digest of the canonical URL. URLs that cannot
// be canonicalized are hashed as given.
func Hash(rawURL string) string {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		canonical = strings.TrimSpace(rawURL)
	}
	return ContentHash([]byte(canonical))
}

// ContentHash computes SHA256 hash of content and returns hex string.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// Resolve turns ref into an absolute http(s) URL relative to base. It
// returns "" for references that do not point at a fetchable resource.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "about:", "blob:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	if strings.HasPrefix(lower, "data:") {
		return ref
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != "" {
		baseURL, err := url.Parse(base)
		if err == nil {
			refURL = baseURL.ResolveReference(refURL)
		}
	}
	if refURL.Scheme != "http" && refURL.Scheme != "https" {
		return ""
	}
	refURL.Fragment = ""
	refURL.RawFragment = ""
	return refURL.String()
}

// Host returns the lowercased host of rawURL, or "" if it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
