package models

import "time"

// Extraction sources, in order of preference.
const (
	SourceTrafilatura = "trafilatura"
	SourceArchiveOrg  = "archive_org"
	SourceHTTPDirect  = "http_direct"
	SourceError       = "error"
)

// Error codes recorded on failed attempts.
const (
	ErrCodeExtractorFailed = "extractor_failed"
	ErrCodeArchiveNotFound = "archive_not_found"
	ErrCodeNetwork         = "network_error"
	ErrCodeTimeout         = "timeout"
	ErrCodeHTTP            = "http_error"
	ErrCodeRobots          = "robots_disallowed"
)

// Outcome tags the result of a single extraction attempt.
type Outcome string

const (
	// OutcomeSuccess means usable content was produced.
	OutcomeSuccess Outcome = "success"
	// OutcomeNoContent means the transport worked but the text was empty or too short.
	OutcomeNoContent Outcome = "no_content"
	// OutcomeFailed means the transport itself failed.
	OutcomeFailed Outcome = "failed"
)

// AttemptResult records one step of the extraction chain.
type AttemptResult struct {
	Method       string        `yaml:"method"`
	Outcome      Outcome       `yaml:"outcome"`
	Duration     time.Duration `yaml:"duration"`
	Retries      int           `yaml:"retries"`
	HTTPStatus   int           `yaml:"http_status,omitempty"`
	ErrorCode    string        `yaml:"error_code,omitempty"`
	ErrorMessage string        `yaml:"error_message,omitempty"`
	Temporary    bool          `yaml:"temporary,omitempty"`
}

// ExtractionResult is the normalized output of the extractor for one URL.
type ExtractionResult struct {
	URL          string
	FinalURL     string
	Success      bool
	Source       string // one of the Source* constants
	HTTPStatus   int
	Title        string
	Description  string
	Keywords     string
	Content      string // raw HTML of the direct fetch, when available
	Readable     string // markdown
	ArticleHTML  string // readability output, where content links are read from
	Text         string // plain text used for scoring
	Language     string
	WordCount    int
	PublishedAt  *time.Time
	Duration     time.Duration
	Retries      int
	ErrorCode    string
	ErrorMessage string
	Attempts     []AttemptResult
}

// Rich reports whether the content came from one of the readability-based sources.
func (r *ExtractionResult) Rich() bool {
	return r.Source == SourceTrafilatura || r.Source == SourceArchiveOrg
}
