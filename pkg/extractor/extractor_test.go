package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/archive"
	"github.com/dtnitsch/mywi/pkg/fetcher"
)

type fakePages struct {
	responses map[string]*fetcher.Response
	errs      map[string][]error
	calls     map[string]int
}

func newFakePages() *fakePages {
	return &fakePages{
		responses: map[string]*fetcher.Response{},
		errs:      map[string][]error{},
		calls:     map[string]int{},
	}
}

func (f *fakePages) Get(_ context.Context, rawURL string) (*fetcher.Response, error) {
	n := f.calls[rawURL]
	f.calls[rawURL]++
	if errs := f.errs[rawURL]; n < len(errs) && errs[n] != nil {
		return nil, errs[n]
	}
	resp, ok := f.responses[rawURL]
	if !ok {
		return nil, &fetcher.FetchError{Kind: fetcher.KindNetwork, URL: rawURL, Err: errors.New("connection refused")}
	}
	if resp.StatusCode >= 400 {
		return resp, &fetcher.FetchError{Kind: fetcher.KindHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (f *fakePages) page(rawURL string, status int, body string) {
	f.responses[rawURL] = &fetcher.Response{URL: rawURL, FinalURL: rawURL, StatusCode: status, Body: []byte(body)}
}

type fakeArchive struct {
	snap *archive.Snapshot
	err  error
}

func (f fakeArchive) Latest(context.Context, string) (*archive.Snapshot, error) {
	return f.snap, f.err
}

func richHTML(title string) string {
	para := strings.Repeat("Reporters describe how the war in Ukraine reshapes daily life for families across the region. ", 6)
	return `<html lang="en"><head><title>` + title + `</title></head><body><article><h1>` + title + `</h1>
<p>` + para + `</p><p>` + para + `</p><p>` + para + `</p></article></body></html>`
}

const thinHTML = `<html><head><title>Loading</title></head><body><div id="app">Please enable JavaScript</div></body></html>`

func newExtractor(pages, snapshots PageFetcher, finder SnapshotFinder) *Extractor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(pages, finder, snapshots, nil, Options{MinReadableWords: 30, DirectRetries: 1}, nil, logger)
}

func TestExtract_DirectSuccess(t *testing.T) {
	pages := newFakePages()
	pages.page("https://example.com/a", 200, richHTML("Ukraine War Update"))

	res := newExtractor(pages, nil, nil).Extract(context.Background(), "https://example.com/a")

	require.True(t, res.Success)
	assert.Equal(t, models.SourceTrafilatura, res.Source)
	assert.Equal(t, 200, res.HTTPStatus)
	assert.Equal(t, "Ukraine War Update", res.Title)
	assert.Equal(t, "en", res.Language)
	assert.GreaterOrEqual(t, res.WordCount, 30)
	assert.NotEmpty(t, res.Content)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, models.OutcomeSuccess, res.Attempts[0].Outcome)
}

func TestExtract_ArchiveFallbackWins(t *testing.T) {
	pages := newFakePages()
	pages.page("https://example.com/a", 200, thinHTML)

	snapshots := newFakePages()
	rawSnap := "https://web.archive.org/web/2024id_/https://example.com/a"
	snapshots.page(rawSnap, 200, richHTML("Archived Title"))

	finder := fakeArchive{snap: &archive.Snapshot{RawURL: rawSnap, Status: 200}}
	res := newExtractor(pages, snapshots, finder).Extract(context.Background(), "https://example.com/a")

	require.True(t, res.Success)
	assert.Equal(t, models.SourceArchiveOrg, res.Source)
	assert.Equal(t, "Archived Title", res.Title)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, models.OutcomeNoContent, res.Attempts[0].Outcome)
	assert.Equal(t, models.OutcomeSuccess, res.Attempts[1].Outcome)
}

func TestExtract_RawBodyFallback(t *testing.T) {
	pages := newFakePages()
	pages.page("https://example.com/a", 200, thinHTML+`<script>var x = 1;</script>`)

	res := newExtractor(pages, nil, fakeArchive{err: archive.ErrNoSnapshot}).Extract(context.Background(), "https://example.com/a")

	require.True(t, res.Success)
	assert.Equal(t, models.SourceHTTPDirect, res.Source)
	assert.Equal(t, "Loading", res.Title)
	assert.Contains(t, res.Readable, "Please enable JavaScript")
	assert.NotContains(t, res.Readable, "var x")
	assert.Len(t, res.Attempts, 3)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(p *fakePages)
		finder   SnapshotFinder
		wantCode string
		status   int
	}{
		{
			name:     "network failure",
			setup:    func(p *fakePages) {},
			finder:   fakeArchive{err: archive.ErrNoSnapshot},
			wantCode: models.ErrCodeNetwork,
		},
		{
			name:     "http error",
			setup:    func(p *fakePages) { p.page("https://example.com/a", 404, "not found") },
			finder:   fakeArchive{err: archive.ErrNoSnapshot},
			wantCode: models.ErrCodeHTTP,
			status:   404,
		},
		{
			name:     "archive not found",
			setup:    func(p *fakePages) { p.page("https://example.com/a", 200, "<html><body></body></html>") },
			finder:   fakeArchive{err: archive.ErrNoSnapshot},
			wantCode: models.ErrCodeArchiveNotFound,
			status:   200,
		},
		{
			name: "timeout",
			setup: func(p *fakePages) {
				timeout := &fetcher.FetchError{Kind: fetcher.KindTimeout, URL: "https://example.com/a", Err: context.DeadlineExceeded}
				p.errs["https://example.com/a"] = []error{timeout, timeout}
			},
			finder:   nil,
			wantCode: models.ErrCodeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := newFakePages()
			tt.setup(pages)

			res := newExtractor(pages, nil, tt.finder).Extract(context.Background(), "https://example.com/a")

			assert.False(t, res.Success)
			assert.Equal(t, models.SourceError, res.Source)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.NotEmpty(t, res.ErrorMessage)
			assert.Equal(t, tt.status, res.HTTPStatus)
			assert.Len(t, res.Attempts, 3)
			for _, a := range res.Attempts {
				assert.NotEmpty(t, a.Method)
				assert.NotEmpty(t, a.Outcome)
			}
		})
	}
}

func TestExtract_RetriesTransientDirectFailure(t *testing.T) {
	pages := newFakePages()
	pages.page("https://example.com/a", 200, richHTML("Second Try"))
	pages.errs["https://example.com/a"] = []error{
		&fetcher.FetchError{Kind: fetcher.KindNetwork, URL: "https://example.com/a", Err: errors.New("reset")},
	}

	res := newExtractor(pages, nil, nil).Extract(context.Background(), "https://example.com/a")

	require.True(t, res.Success)
	assert.Equal(t, 1, res.Retries)
	assert.Equal(t, 1, res.Attempts[0].Retries)
	assert.Equal(t, 2, pages.calls["https://example.com/a"])
}
