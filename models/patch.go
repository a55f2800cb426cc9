package models

import (
	"fmt"
	"time"
)

// ExpressionPatch lists every expression column the pipeline is allowed to
// change. A nil field is left untouched.
type ExpressionPatch struct {
	DomainID    *int64  `validate:"omitempty,gt=0"`
	HTTPStatus  *int    `validate:"omitempty,gte=0,lte=999"`
	Title       *string `validate:"omitempty"`
	Description *string
	Keywords    *string
	Content     *string
	Readable    *string
	Language    *string `validate:"omitempty,max=16"`
	WordCount   *int    `validate:"omitempty,gte=0"`

	Relevance    *float64 `validate:"omitempty,gte=0"`
	QualityScore *float64 `validate:"omitempty,gte=0,lte=1"`
	ValidLLM     *bool
	ValidModel   *string

	ExtractionSource   *string  `validate:"omitempty,oneof=trafilatura archive_org http_direct error"`
	ExtractionDuration *float64 `validate:"omitempty,gte=0"`
	ExtractionRetries  *int     `validate:"omitempty,gte=0"`
	ExtractionError    *string

	PublishedAt *time.Time
	CrawledAt   *time.Time
	ApprovedAt  *time.Time
	ReadableAt  *time.Time
}

// Validate checks the patch values before they reach the store.
func (p *ExpressionPatch) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid expression patch: %w", err)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p *ExpressionPatch) IsEmpty() bool {
	return *p == ExpressionPatch{}
}

// Apply copies the patch onto e, mirroring what the store writes.
func (p *ExpressionPatch) Apply(e *Expression) {
	if p.DomainID != nil {
		e.DomainID = p.DomainID
	}
	if p.HTTPStatus != nil {
		e.HTTPStatus = *p.HTTPStatus
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Keywords != nil {
		e.Keywords = *p.Keywords
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Readable != nil {
		e.Readable = *p.Readable
	}
	if p.Language != nil {
		e.Language = *p.Language
	}
	if p.WordCount != nil {
		e.WordCount = *p.WordCount
	}
	if p.Relevance != nil {
		e.Relevance = *p.Relevance
	}
	if p.QualityScore != nil {
		e.QualityScore = *p.QualityScore
	}
	if p.ValidLLM != nil {
		e.ValidLLM = p.ValidLLM
	}
	if p.ValidModel != nil {
		e.ValidModel = *p.ValidModel
	}
	if p.ExtractionSource != nil {
		e.ExtractionSource = *p.ExtractionSource
	}
	if p.ExtractionDuration != nil {
		e.ExtractionDuration = *p.ExtractionDuration
	}
	if p.ExtractionRetries != nil {
		e.ExtractionRetries = *p.ExtractionRetries
	}
	if p.ExtractionError != nil {
		e.ExtractionError = *p.ExtractionError
	}
	if p.PublishedAt != nil {
		e.PublishedAt = p.PublishedAt
	}
	if p.CrawledAt != nil {
		e.CrawledAt = p.CrawledAt
	}
	if p.ApprovedAt != nil {
		e.ApprovedAt = p.ApprovedAt
	}
	if p.ReadableAt != nil {
		e.ReadableAt = p.ReadableAt
	}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
