package domain

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_EmptyHeuristicsReturnsRawHost(t *testing.T) {
	urls := map[string]string{
		"https://example.com/a/b":            "example.com",
		"http://news.example.co.uk/?q=1":     "news.example.co.uk",
		"https://Blog.Example.org:8080/post": "Blog.Example.org:8080",
		"https://user@host.example/x":        "host.example",
	}
	for in, want := range urls {
		assert.Equal(t, want, Resolve(in, Heuristics{}), in)
	}
}

func TestResolve_ParseFailureIsEmpty(t *testing.T) {
	assert.Equal(t, "", Resolve("http://[::1", Heuristics{}))
	assert.Equal(t, "", Resolve("://bad", Heuristics{}))
}

func TestResolve_AppliesHeuristic(t *testing.T) {
	h, err := NewHeuristics(map[string]string{
		"facebook.com": `facebook\.com/([a-zA-Z0-9\.\-]+)`,
		"blogspot.com": `https?://([a-z0-9\-]+\.blogspot\.com)`,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())

	assert.Equal(t, "lemonde", Resolve("https://www.facebook.com/lemonde/posts/1", h))
	assert.Equal(t, "myblog.blogspot.com", Resolve("https://myblog.blogspot.com/2020/01/x.html", h))
	// Suffix matches but regex does not: keep raw host.
	assert.Equal(t, "www.facebook.com", Resolve("https://www.facebook.com/", h))
	// No suffix match.
	assert.Equal(t, "example.com", Resolve("https://example.com/lemonde", h))
}

func TestNewHeuristics_SupportsLookahead(t *testing.T) {
	h, err := NewHeuristics(map[string]string{
		"t.co": `t\.co/(?!i/)([A-Za-z0-9]+)`,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", Resolve("https://t.co/abc123", h))
}

func TestLoadHeuristics_MalformedFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("facebook.com: [unclosed\n"), 0o600))
	assert.Equal(t, 0, LoadHeuristics(bad, discardLogger()).Len())

	badRegex := filepath.Join(dir, "regex.json")
	require.NoError(t, os.WriteFile(badRegex, []byte(`{"x.com": "("}`), 0o600))
	assert.Equal(t, 0, LoadHeuristics(badRegex, discardLogger()).Len())

	assert.Equal(t, 0, LoadHeuristics(filepath.Join(dir, "missing.yaml"), discardLogger()).Len())

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("facebook.com: 'facebook\\.com/([a-z]+)'\n"), 0o600))
	assert.Equal(t, 1, LoadHeuristics(good, discardLogger()).Len())
}
