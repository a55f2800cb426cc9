package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Path", "https://example.com/Path"},
		{"drops default port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps custom port", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"strips fragment", "https://example.com/a#top", "https://example.com/a"},
		{"adds root path", "https://example.com", "https://example.com/"},
		{"strips tracking", "https://example.com/a?utm_source=x&b=2&fbclid=y&a=1", "https://example.com/a?a=1&b=2"},
		{"trims copy-paste noise", "  (https://example.com/a),", "https://example.com/a"},
		{"markdown link", "[site](https://example.com/a)", "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize_Rejects(t *testing.T) {
	for _, in := range []string{"", "ftp://example.com/file", "mailto:me@example.com", "https://"} {
		_, err := Canonicalize(in)
		assert.Error(t, err, in)
	}
}

func TestHash_SurvivesEncodingDifferences(t *testing.T) {
	a := Hash("https://Example.com/page?b=2&a=1#x")
	b := Hash("https://example.com:443/page?a=1&b=2")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Hash("https://example.com/other"))
}

func TestResolve(t *testing.T) {
	base := "https://example.com/news/article.html"
	tests := []struct {
		ref  string
		want string
	}{
		{"/img/a.png", "https://example.com/img/a.png"},
		{"b.html", "https://example.com/news/b.html"},
		{"//cdn.example.org/x.jpg", "https://cdn.example.org/x.jpg"},
		{"https://other.org/p#frag", "https://other.org/p"},
		{"#section", ""},
		{"javascript:void(0)", ""},
		{"mailto:a@b.c", ""},
		{"data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(base, tt.ref), tt.ref)
	}
}
