package archive

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatest(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("url")
		assert.Equal(t, "/wayback/available", r.URL.Path)
		_, _ = w.Write([]byte(`{"url":"example.com/a","archived_snapshots":{"closest":{
			"status":"200","available":true,
			"url":"http://web.archive.org/web/20240102030405/https://example.com/a",
			"timestamp":"20240102030405"}}}`))
	}))
	defer srv.Close()

	snap, err := NewClient(srv.Client(), srv.URL, "agent").Latest(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/a", gotQuery)
	assert.Equal(t, 200, snap.Status)
	assert.Equal(t, "http://web.archive.org/web/20240102030405id_/https://example.com/a", snap.RawURL)
	assert.Equal(t, 2024, snap.CapturedAt.Year())
}

func TestLatest_NoSnapshot(t *testing.T) {
	bodies := []string{
		`{"url":"x","archived_snapshots":{}}`,
		`{"archived_snapshots":{"closest":{"available":false,"url":"http://web.archive.org/web/1/x"}}}`,
		`{"archived_snapshots":{"closest":{"available":true,"status":"404","url":"http://web.archive.org/web/1/x","timestamp":"1"}}}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := NewClient(srv.Client(), srv.URL, "").Latest(context.Background(), "x")
		assert.True(t, errors.Is(err, ErrNoSnapshot), body)
		srv.Close()
	}
}

func TestLatest_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL, "").Latest(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSnapshot))
}

func TestRawURL(t *testing.T) {
	assert.Equal(t, "https://web.archive.org/web/2020id_/http://a.b/", RawURL("https://web.archive.org/web/2020/http://a.b/", "2020"))
	assert.Equal(t, "https://other/x", RawURL("https://other/x", "2020"))
	assert.Equal(t, "https://other/x", RawURL("https://other/x", ""))
}

type mapCache map[string][]byte

func (m mapCache) Get(url string) ([]byte, bool) {
	data, ok := m[url]
	return data, ok
}

func (m mapCache) Set(url string, data []byte) error {
	m[url] = data
	return nil
}

func TestLatest_Cached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"archived_snapshots":{"closest":{"available":true,"status":"200",
			"url":"http://web.archive.org/web/20240102030405/https://example.com/a","timestamp":"20240102030405"}}}`))
	}))
	defer srv.Close()

	cache := mapCache{}
	client := NewClient(srv.Client(), srv.URL, "").WithCache(cache, nil)
	for i := 0; i < 3; i++ {
		snap, err := client.Latest(context.Background(), "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, 200, snap.Status)
	}
	assert.Equal(t, 1, calls)
	assert.Len(t, cache, 1)
}

func TestLatest_ServerErrorNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cache := mapCache{}
	_, err := NewClient(srv.Client(), srv.URL, "").WithCache(cache, nil).Latest(context.Background(), "x")
	require.Error(t, err)
	assert.Empty(t, cache)
}

type failingCache struct{}

func (failingCache) Get(string) ([]byte, bool) { return nil, false }

func (failingCache) Set(string, []byte) error { return errors.New("disk full") }

func TestLatest_CacheWriteFailureIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"archived_snapshots":{"closest":{"available":true,"status":"200",
			"url":"http://web.archive.org/web/20240102030405/https://example.com/a","timestamp":"20240102030405"}}}`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	snap, err := NewClient(srv.Client(), srv.URL, "").WithCache(failingCache{}, logger).Latest(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, 200, snap.Status)
	assert.Contains(t, logs.String(), "Failed to cache archive lookup")
	assert.Contains(t, logs.String(), "disk full")
}
