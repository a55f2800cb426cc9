// Package extractor turns a URL into readable content by walking an ordered
// chain of sources: direct readability extraction, the latest web-archive
// capture, and finally the raw HTTP body.
package extractor

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/archive"
	"github.com/dtnitsch/mywi/pkg/fetcher"
	"github.com/dtnitsch/mywi/pkg/lexicon"
	"github.com/dtnitsch/mywi/pkg/metrics"
	"github.com/dtnitsch/mywi/pkg/parser"
)

const (
	DefaultMinReadableWords = 30
	DefaultArchiveTimeout   = 20 * time.Second
)

// PageFetcher is satisfied by *fetcher.Fetcher.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// SnapshotFinder is satisfied by *archive.Client.
type SnapshotFinder interface {
	Latest(ctx context.Context, rawURL string) (*archive.Snapshot, error)
}

type Options struct {
	MinReadableWords int
	ArchiveTimeout   time.Duration
	// DirectRetries is how many times a transient direct-fetch failure is retried.
	DirectRetries int
}

type Extractor struct {
	pages     PageFetcher
	archive   SnapshotFinder
	snapshots PageFetcher
	parser    *parser.Parser
	detector  *lexicon.Detector
	policy    *bluemonday.Policy
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds an extractor. archive may be nil to skip the archive source;
// snapshots defaults to pages.
func New(pages PageFetcher, finder SnapshotFinder, snapshots PageFetcher, detector *lexicon.Detector, opts Options, m *metrics.Metrics, logger *slog.Logger) *Extractor {
	if opts.MinReadableWords <= 0 {
		opts.MinReadableWords = DefaultMinReadableWords
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = DefaultArchiveTimeout
	}
	if opts.DirectRetries < 0 {
		opts.DirectRetries = 0
	}
	if snapshots == nil {
		snapshots = pages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		pages:     pages,
		archive:   finder,
		snapshots: snapshots,
		parser:    &parser.Parser{},
		detector:  detector,
		policy:    bluemonday.StrictPolicy(),
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Extract runs the fallback chain for rawURL. It never returns an error:
// failures are reported through Success, ErrorCode and Attempts.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (res models.ExtractionResult) {
	start := time.Now()
	res = models.ExtractionResult{URL: rawURL, FinalURL: rawURL}
	defer func() {
		res.Duration = time.Since(start)
	}()

	direct, article, resp := e.tryDirect(ctx, rawURL)
	e.record(&res, direct)
	if resp != nil {
		res.HTTPStatus = resp.StatusCode
		res.FinalURL = resp.FinalURL
		if resp.StatusCode < 400 {
			res.Content = string(resp.Body)
		}
	}
	if direct.Outcome == models.OutcomeSuccess {
		e.fill(&res, article, models.SourceTrafilatura, metaLanguage(resp))
		return res
	}

	archived, archivedArticle, snapResp := e.tryArchive(ctx, rawURL)
	e.record(&res, archived)
	if archived.Outcome == models.OutcomeSuccess {
		e.fill(&res, archivedArticle, models.SourceArchiveOrg, metaLanguage(snapResp))
		return res
	}

	raw := e.tryRaw(resp)
	e.record(&res, raw.attempt)
	if raw.attempt.Outcome == models.OutcomeSuccess {
		res.Success = true
		res.Source = models.SourceHTTPDirect
		res.Title = raw.meta.Title
		res.Description = raw.meta.Description
		res.Keywords = raw.meta.Keywords
		res.PublishedAt = raw.meta.PublishedAt
		res.Readable = raw.text
		res.Text = raw.text
		res.WordCount = len(strings.Fields(raw.text))
		res.Language = e.language(raw.text, raw.meta.Language)
		return res
	}

	res.Success = false
	res.Source = models.SourceError
	res.ErrorCode, res.ErrorMessage = failureCause(direct, archived)
	e.logger.Debug("Extraction failed", "url", rawURL, "error_code", res.ErrorCode, "error", res.ErrorMessage)
	return res
}

func (e *Extractor) record(res *models.ExtractionResult, attempt models.AttemptResult) {
	res.Attempts = append(res.Attempts, attempt)
	res.Retries += attempt.Retries
	e.metrics.ObserveAttempt(attempt.Method, string(attempt.Outcome), attempt.Duration)
}

func (e *Extractor) fill(res *models.ExtractionResult, a *models.ReadableArticle, source, langHint string) {
	res.Success = true
	res.Source = source
	res.Title = a.Title
	res.Description = a.Description
	res.Keywords = a.Keywords
	res.PublishedAt = a.PublishedAt
	res.Readable = a.ToMarkdown()
	res.ArticleHTML = a.Content
	res.Text = a.ToPlainText()
	res.WordCount = a.WordCount()
	res.Language = e.language(res.Text, langHint)
}

func (e *Extractor) language(text, hint string) string {
	if code, _ := e.detector.Detect(text); code != "" {
		return code
	}
	return hint
}

// tryDirect fetches the page and runs readability over it. Transient
// transport failures are retried up to DirectRetries times.
func (e *Extractor) tryDirect(ctx context.Context, rawURL string) (attempt models.AttemptResult, article *models.ReadableArticle, resp *fetcher.Response) {
	attempt = models.AttemptResult{Method: models.SourceTrafilatura}
	start := time.Now()
	defer func() { attempt.Duration = time.Since(start) }()

	var err error
	for {
		resp, err = e.pages.Get(ctx, rawURL)
		fe, ok := fetcher.AsFetchError(err)
		if err == nil || !ok || !fe.Temporary() || fe.Kind == fetcher.KindHTTPStatus || attempt.Retries >= e.opts.DirectRetries || ctx.Err() != nil {
			break
		}
		attempt.Retries++
		e.logger.Debug("Retrying direct fetch", "url", rawURL, "retry", attempt.Retries, "error", err)
	}
	if resp != nil {
		attempt.HTTPStatus = resp.StatusCode
	}
	if err != nil {
		fail(&attempt, err)
		// An error page can still carry an article; only transport
		// failures stop here.
		if resp == nil {
			return attempt, nil, resp
		}
	}

	article, ok := e.readable(resp)
	if !ok {
		if attempt.Outcome == "" {
			attempt.Outcome = models.OutcomeNoContent
			attempt.ErrorCode = models.ErrCodeExtractorFailed
			attempt.ErrorMessage = "no readable content"
		}
		return attempt, nil, resp
	}

	attempt.Outcome = models.OutcomeSuccess
	attempt.ErrorCode = ""
	attempt.ErrorMessage = ""
	attempt.Temporary = false
	return attempt, article, resp
}

func (e *Extractor) tryArchive(ctx context.Context, rawURL string) (attempt models.AttemptResult, article *models.ReadableArticle, resp *fetcher.Response) {
	attempt = models.AttemptResult{Method: models.SourceArchiveOrg}
	start := time.Now()
	defer func() { attempt.Duration = time.Since(start) }()

	if e.archive == nil {
		attempt.Outcome = models.OutcomeNoContent
		attempt.ErrorCode = models.ErrCodeArchiveNotFound
		attempt.ErrorMessage = "archive lookup disabled"
		return attempt, nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.ArchiveTimeout)
	defer cancel()

	snap, err := e.archive.Latest(ctx, rawURL)
	if err != nil {
		if errors.Is(err, archive.ErrNoSnapshot) {
			attempt.Outcome = models.OutcomeNoContent
			attempt.ErrorCode = models.ErrCodeArchiveNotFound
			attempt.ErrorMessage = err.Error()
			return attempt, nil, nil
		}
		fail(&attempt, err)
		return attempt, nil, nil
	}

	resp, err = e.snapshots.Get(ctx, snap.RawURL)
	if resp != nil {
		attempt.HTTPStatus = resp.StatusCode
	}
	if err != nil {
		fail(&attempt, err)
		if fe, ok := fetcher.AsFetchError(err); ok && fe.Kind == fetcher.KindHTTPStatus && fe.StatusCode == 404 {
			attempt.ErrorCode = models.ErrCodeArchiveNotFound
		}
		return attempt, nil, nil
	}

	article, ok := e.readableAs(resp, rawURL)
	if !ok {
		attempt.Outcome = models.OutcomeNoContent
		attempt.ErrorCode = models.ErrCodeExtractorFailed
		attempt.ErrorMessage = "no readable content in snapshot"
		return attempt, nil, resp
	}

	attempt.Outcome = models.OutcomeSuccess
	return attempt, article, resp
}

type rawResult struct {
	attempt models.AttemptResult
	text    string
	meta    parser.Meta
}

// tryRaw keeps the direct response body itself, stripped of markup.
func (e *Extractor) tryRaw(resp *fetcher.Response) (out rawResult) {
	start := time.Now()
	out = rawResult{attempt: models.AttemptResult{Method: models.SourceHTTPDirect}}
	defer func() { out.attempt.Duration = time.Since(start) }()

	if resp == nil || resp.StatusCode >= 400 || len(resp.Body) == 0 {
		out.attempt.Outcome = models.OutcomeNoContent
		out.attempt.ErrorCode = models.ErrCodeExtractorFailed
		out.attempt.ErrorMessage = "no usable response body"
		if resp != nil {
			out.attempt.HTTPStatus = resp.StatusCode
		}
		return out
	}
	out.attempt.HTTPStatus = resp.StatusCode

	body := string(resp.Body)
	out.text = collapseWhitespace(html.UnescapeString(e.policy.Sanitize(body)))
	if out.text == "" {
		out.attempt.Outcome = models.OutcomeNoContent
		out.attempt.ErrorCode = models.ErrCodeExtractorFailed
		out.attempt.ErrorMessage = "empty body after cleanup"
		return out
	}

	out.meta = parser.ParseMeta(body)
	out.attempt.Outcome = models.OutcomeSuccess
	return out
}

func (e *Extractor) readable(resp *fetcher.Response) (*models.ReadableArticle, bool) {
	return e.readableAs(resp, resp.FinalURL)
}

func (e *Extractor) readableAs(resp *fetcher.Response, pageURL string) (*models.ReadableArticle, bool) {
	if resp == nil || len(resp.Body) == 0 {
		return nil, false
	}
	if pageURL == "" {
		pageURL = resp.URL
	}
	article, err := e.parser.Parse(pageURL, string(resp.Body))
	if err != nil {
		e.logger.Debug("Readability failed", "url", pageURL, "error", err)
		return nil, false
	}
	if article.WordCount() < e.opts.MinReadableWords {
		return nil, false
	}
	return article, true
}

func metaLanguage(resp *fetcher.Response) string {
	if resp == nil {
		return ""
	}
	return parser.ParseMeta(string(resp.Body)).Language
}

// fail marks attempt as a transport failure classified from err.
func fail(attempt *models.AttemptResult, err error) {
	attempt.Outcome = models.OutcomeFailed
	attempt.ErrorMessage = err.Error()
	attempt.ErrorCode = models.ErrCodeNetwork

	fe, ok := fetcher.AsFetchError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			attempt.ErrorCode = models.ErrCodeTimeout
			attempt.Temporary = true
		}
		return
	}
	attempt.Temporary = fe.Temporary()
	switch fe.Kind {
	case fetcher.KindTimeout:
		attempt.ErrorCode = models.ErrCodeTimeout
	case fetcher.KindHTTPStatus:
		attempt.ErrorCode = models.ErrCodeHTTP
		attempt.HTTPStatus = fe.StatusCode
	case fetcher.KindTooLarge:
		attempt.ErrorCode = models.ErrCodeExtractorFailed
	case fetcher.KindRobots:
		attempt.ErrorCode = models.ErrCodeRobots
	}
}

// failureCause picks the error code reported for a fully failed chain:
// a direct transport failure wins, then a missing archive capture, then a
// plain extractor failure.
func failureCause(direct, archived models.AttemptResult) (string, string) {
	if direct.Outcome == models.OutcomeFailed {
		return direct.ErrorCode, direct.ErrorMessage
	}
	if archived.ErrorCode == models.ErrCodeArchiveNotFound {
		return models.ErrCodeArchiveNotFound, archived.ErrorMessage
	}
	if archived.Outcome == models.OutcomeFailed {
		return archived.ErrorCode, archived.ErrorMessage
	}
	return models.ErrCodeExtractorFailed, "no extractor produced readable content"
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
