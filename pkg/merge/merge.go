// Package merge reconciles a fresh extraction with the stored state of an
// expression without regressing content quality.
package merge

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dtnitsch/mywi/models"
)

type Strategy string

const (
	// PreserveExisting only fills empty fields.
	PreserveExisting Strategy = "preserve_existing"
	// MercuryPriority lets readability-based sources override values that
	// came from a raw direct fetch.
	MercuryPriority Strategy = "mercury_priority"
	// SmartMerge keeps whichever free-text value is longer and fills
	// structured fields only when empty.
	SmartMerge Strategy = "smart_merge"
)

// Strategies lists the accepted names.
var Strategies = []Strategy{PreserveExisting, MercuryPriority, SmartMerge}

// ParseStrategy maps a name to a Strategy. The empty name selects SmartMerge.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return SmartMerge, nil
	}
	for _, s := range Strategies {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown merge strategy %q", name)
}

// Merge returns the patch that brings existing up to date with ext. Only
// fields whose value actually changes are set, so merging the same
// extraction twice yields an empty second patch.
func Merge(existing models.Expression, ext models.ExtractionResult, strategy Strategy) models.ExpressionPatch {
	var patch models.ExpressionPatch

	if !ext.Success {
		if existing.ExtractionSource == "" {
			patch.ExtractionSource = models.Ptr(models.SourceError)
		}
		return patch
	}

	override := strategy == MercuryPriority && ext.Rich() && !richSource(existing.ExtractionSource)

	text := func(current, incoming string) *string {
		if incoming == "" || incoming == current {
			return nil
		}
		switch {
		case current == "":
			return &incoming
		case strategy == SmartMerge:
			if utf8.RuneCountInString(incoming) > utf8.RuneCountInString(current) {
				return &incoming
			}
		case override:
			return &incoming
		}
		return nil
	}

	patch.Title = text(existing.Title, ext.Title)
	patch.Description = text(existing.Description, ext.Description)
	patch.Keywords = text(existing.Keywords, ext.Keywords)
	patch.Readable = text(existing.Readable, ext.Readable)
	patch.Content = text(existing.Content, ext.Content)

	if ext.Language != "" && ext.Language != existing.Language && (existing.Language == "" || override) {
		patch.Language = models.Ptr(ext.Language)
	}
	if ext.PublishedAt != nil && (existing.PublishedAt == nil || (override && !existing.PublishedAt.Equal(*ext.PublishedAt))) {
		t := ext.PublishedAt.UTC()
		patch.PublishedAt = &t
	}

	// Source metadata follows the readable text that is kept.
	readableWon := patch.Readable != nil
	sameReadable := existing.Readable == ext.Readable
	if readableWon || (sameReadable && !richSource(existing.ExtractionSource) && ext.Source != existing.ExtractionSource) {
		if ext.Source != existing.ExtractionSource {
			patch.ExtractionSource = models.Ptr(ext.Source)
		}
		if ext.WordCount != existing.WordCount {
			patch.WordCount = models.Ptr(ext.WordCount)
		}
	}

	return patch
}

// MarkEvaluated adds the pipeline bookkeeping for one run to patch:
// approved_at always, crawled_at and readable_at only on success, plus the
// latest HTTP status and attempt diagnostics. Fields equal to the stored
// value are left out.
func MarkEvaluated(patch *models.ExpressionPatch, existing models.Expression, ext models.ExtractionResult, now time.Time) {
	now = now.UTC()
	patch.ApprovedAt = &now

	if ext.Success {
		patch.CrawledAt = &now
		patch.ReadableAt = &now
	}
	if ext.HTTPStatus != 0 && ext.HTTPStatus != existing.HTTPStatus {
		patch.HTTPStatus = models.Ptr(ext.HTTPStatus)
	}

	patch.ExtractionDuration = models.Ptr(ext.Duration.Seconds())
	if ext.Retries != existing.ExtractionRetries {
		patch.ExtractionRetries = models.Ptr(ext.Retries)
	}

	errText := ""
	if !ext.Success {
		errText = ext.ErrorCode
		if ext.ErrorMessage != "" {
			errText += ": " + ext.ErrorMessage
		}
	}
	if errText != existing.ExtractionError {
		patch.ExtractionError = models.Ptr(errText)
	}
}

func richSource(source string) bool {
	return source == models.SourceTrafilatura || source == models.SourceArchiveOrg
}
