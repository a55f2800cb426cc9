package models

import "time"

// Expression is one crawled page inside a land.
type Expression struct {
	ID       int64  `db:"id" yaml:"id"`
	LandID   int64  `db:"land_id" yaml:"land_id"`
	URL      string `db:"url" yaml:"url"`
	URLHash  string `db:"url_hash" yaml:"-"`
	Depth    int    `db:"depth" yaml:"depth"`
	DomainID *int64 `db:"domain_id" yaml:"domain_id,omitempty"`

	HTTPStatus  int    `db:"http_status" yaml:"http_status,omitempty"`
	Title       string `db:"title" yaml:"title,omitempty"`
	Description string `db:"description" yaml:"description,omitempty"`
	Keywords    string `db:"keywords" yaml:"keywords,omitempty"`
	Content     string `db:"content" yaml:"-"`
	Readable    string `db:"readable" yaml:"-"`
	Summary     string `db:"summary" yaml:"summary,omitempty"`
	Language    string `db:"language" yaml:"language,omitempty"`
	WordCount   int    `db:"word_count" yaml:"word_count,omitempty"`

	Relevance      float64  `db:"relevance" yaml:"relevance"`
	QualityScore   float64  `db:"quality_score" yaml:"quality_score,omitempty"`
	SentimentScore *float64 `db:"sentiment_score" yaml:"sentiment_score,omitempty"`
	SentimentLabel string   `db:"sentiment_label" yaml:"sentiment_label,omitempty"`
	ValidLLM       *bool    `db:"valid_llm" yaml:"valid_llm,omitempty"`
	ValidModel     string   `db:"valid_model" yaml:"valid_model,omitempty"`

	ExtractionSource   string  `db:"extraction_source" yaml:"extraction_source,omitempty"`
	ExtractionDuration float64 `db:"extraction_duration" yaml:"extraction_duration,omitempty"` // seconds
	ExtractionRetries  int     `db:"extraction_retries" yaml:"extraction_retries,omitempty"`
	ExtractionError    string  `db:"extraction_error" yaml:"extraction_error,omitempty"`

	PublishedAt *time.Time `db:"published_at" yaml:"published_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" yaml:"created_at"`
	CrawledAt   *time.Time `db:"crawled_at" yaml:"crawled_at,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" yaml:"approved_at,omitempty"`
	ReadableAt  *time.Time `db:"readable_at" yaml:"readable_at,omitempty"`
	ClaimedAt   *time.Time `db:"claimed_at" yaml:"-"`
	ClaimToken  *string    `db:"claim_token" yaml:"-"`
}

// Pending reports whether the expression is still a frontier item.
func (e *Expression) Pending() bool {
	return e.ApprovedAt == nil
}

// Domain aggregates the expressions of one land sharing a publisher domain.
type Domain struct {
	ID          int64      `db:"id" yaml:"id"`
	LandID      int64      `db:"land_id" yaml:"land_id"`
	Name        string     `db:"name" yaml:"name"`
	Title       string     `db:"title" yaml:"title,omitempty"`
	Description string     `db:"description" yaml:"description,omitempty"`
	Keywords    string     `db:"keywords" yaml:"keywords,omitempty"`
	Language    string     `db:"language" yaml:"language,omitempty"`
	HTTPStatus  int        `db:"http_status" yaml:"http_status,omitempty"`
	FetchedAt   *time.Time `db:"fetched_at" yaml:"fetched_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" yaml:"created_at"`
}

// Media types.
const (
	MediaImage = "img"
	MediaVideo = "video"
	MediaAudio = "audio"
)

// Media is an image, video or audio reference found in an expression.
type Media struct {
	ID             int64     `db:"id"`
	ExpressionID   int64     `db:"expression_id"`
	URL            string    `db:"url"`
	URLHash        string    `db:"url_hash"`
	Type           string    `db:"type"`
	Width          int       `db:"width"`
	Height         int       `db:"height"`
	Format         string    `db:"format"`
	FileSize       int64     `db:"file_size"`
	DominantColors string    `db:"dominant_colors"`
	IsProcessed    bool      `db:"is_processed"`
	CreatedAt      time.Time `db:"created_at"`
}

// MediaFields lists exactly what may be set when a media row is created.
type MediaFields struct {
	URL            string
	Type           string
	Width          int
	Height         int
	Format         string
	FileSize       int64
	DominantColors string
}

// ExpressionLink is a directed edge between two expressions.
type ExpressionLink struct {
	SourceID   int64     `db:"source_id"`
	TargetID   int64     `db:"target_id"`
	AnchorText string    `db:"anchor_text"`
	LinkType   string    `db:"link_type"`
	Rel        string    `db:"rel"`
	Position   int       `db:"position"`
	CreatedAt  time.Time `db:"created_at"`
}

// LinkMeta carries the edge attributes recorded alongside a link.
type LinkMeta struct {
	AnchorText string
	LinkType   string
	Rel        string
	Position   int
}
