package llmgate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouter_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"oui"}}],
			"usage":{"prompt_tokens":120,"completion_tokens":1,"total_tokens":121}}`))
	}))
	defer srv.Close()

	c, err := NewOpenRouter(srv.Client(), srv.URL, "secret").Complete(context.Background(), "question", "m", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "oui", c.Content)
	assert.Equal(t, Usage{PromptTokens: 120, CompletionTokens: 1, TotalTokens: 121}, c.Usage)
	assert.Equal(t, "m", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "question", got.Messages[0].Content)
}

func TestOpenRouter_StatusClasses(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			_, err := NewOpenRouter(srv.Client(), srv.URL, "k").Complete(context.Background(), "q", "m", 0)
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestOpenRouter_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewOpenRouter(srv.Client(), srv.URL, "k").Complete(ctx, "q", "m", 0)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestOpenRouter_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenRouter(srv.Client(), srv.URL, "k").Complete(context.Background(), "q", "m", 0)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}
