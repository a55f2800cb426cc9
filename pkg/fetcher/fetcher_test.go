package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_OK(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(Options{UserAgent: "test-agent"})
	resp, err := f.Get(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test-agent", gotUA)
	assert.Contains(t, string(resp.Body), "<title>ok</title>")
	assert.Equal(t, srv.URL+"/page", resp.FinalURL)
}

func TestGet_HTTPStatusKeepsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("gone"))
	}))
	defer srv.Close()

	resp, err := NewFetcher(Options{}).Get(context.Background(), srv.URL)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	fe, ok := AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, KindHTTPStatus, fe.Kind)
	assert.False(t, fe.Temporary())
}

func TestGet_TimeoutIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{Timeout: 50 * time.Millisecond}).Get(context.Background(), srv.URL)
	fe, ok := AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, fe.Kind)
	assert.True(t, fe.Temporary())
}

func TestGet_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{MaxBodyBytes: 10}).Get(context.Background(), srv.URL)
	fe, ok := AsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, KindTooLarge, fe.Kind)
}

func TestGet_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>caf\xe9</p>"))
	}))
	defer srv.Close()

	resp, err := NewFetcher(Options{}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", string(resp.Body))
}

func TestGet_RespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(Options{RespectRobots: true})

	_, err := f.Get(context.Background(), srv.URL+"/private/page")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisallowed))

	_, err = f.Get(context.Background(), srv.URL+"/public")
	assert.NoError(t, err)
}

func TestRobots_MissingAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	allowed, err := NewRobotsChecker(srv.Client(), "agent").Allowed(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head></html>`))
	}))
	defer srv.Close()

	doc, _, err := NewFetcher(Options{}).Document(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Home", doc.Find("title").Text())
}
