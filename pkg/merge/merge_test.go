package merge

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/mywi/models"
)

func extraction(source, title, readable string) models.ExtractionResult {
	return models.ExtractionResult{
		Success:   true,
		Source:    source,
		Title:     title,
		Readable:  readable,
		WordCount: len(readable),
		Language:  "en",
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"preserve_existing", "mercury_priority", "smart_merge", " Smart_Merge "} {
		_, err := ParseStrategy(name)
		assert.NoError(t, err, name)
	}
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, SmartMerge, s)

	_, err = ParseStrategy("latest_wins")
	assert.Error(t, err)
}

func TestSmartMerge_TitleLength(t *testing.T) {
	longTitle := "A Much Longer and More Descriptive Title"

	existing := models.Expression{Title: "A"}
	patch := Merge(existing, extraction(models.SourceTrafilatura, longTitle, "body"), SmartMerge)
	require.NotNil(t, patch.Title)
	assert.Equal(t, longTitle, *patch.Title)

	existing = models.Expression{Title: longTitle}
	patch = Merge(existing, extraction(models.SourceTrafilatura, "A", "body"), SmartMerge)
	assert.Nil(t, patch.Title)
	patch.Apply(&existing)
	assert.Equal(t, longTitle, existing.Title)
}

func TestSmartMerge_StructuredOnlyWhenEmpty(t *testing.T) {
	published := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	other := published.Add(48 * time.Hour)

	ext := extraction(models.SourceTrafilatura, "t", "body")
	ext.Language = "fr"
	ext.PublishedAt = &other

	patch := Merge(models.Expression{Language: "en", PublishedAt: &published}, ext, SmartMerge)
	assert.Nil(t, patch.Language)
	assert.Nil(t, patch.PublishedAt)

	patch = Merge(models.Expression{}, ext, SmartMerge)
	require.NotNil(t, patch.Language)
	assert.Equal(t, "fr", *patch.Language)
	require.NotNil(t, patch.PublishedAt)
	assert.True(t, other.Equal(*patch.PublishedAt))
}

func TestMerge_Idempotent(t *testing.T) {
	published := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	ext := extraction(models.SourceArchiveOrg, "Fresh title that is longer", "new readable body text")
	ext.Description = "desc"
	ext.Keywords = "k1, k2"
	ext.Content = "<html></html>"
	ext.PublishedAt = &published

	starts := []models.Expression{
		{},
		{Title: "Old", Readable: "short", ExtractionSource: models.SourceHTTPDirect, Language: "fr"},
		{Title: "An existing much longer title than new", Readable: "existing readable content that is longer", ExtractionSource: models.SourceTrafilatura},
	}

	for _, strategy := range Strategies {
		for i, start := range starts {
			once := start
			first := Merge(once, ext, strategy)
			first.Apply(&once)

			twice := once
			second := Merge(twice, ext, strategy)
			second.Apply(&twice)

			assert.True(t, second.IsEmpty(), "%s/%d second patch: %+v", strategy, i, second)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("%s/%d state changed on re-merge (-once +twice):\n%s", strategy, i, diff)
			}
		}
	}
}

func TestPreserveExisting_OnlyFillsGaps(t *testing.T) {
	existing := models.Expression{Title: "Kept", Description: ""}
	ext := extraction(models.SourceTrafilatura, "A much longer replacement title", "body")
	ext.Description = "filled"

	patch := Merge(existing, ext, PreserveExisting)
	assert.Nil(t, patch.Title)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "filled", *patch.Description)
}

func TestMercuryPriority(t *testing.T) {
	direct := models.Expression{
		Title:            "Direct fetch title that is quite long",
		Readable:         "raw body text from direct fetch that is long",
		ExtractionSource: models.SourceHTTPDirect,
		Language:         "fr",
	}

	patch := Merge(direct, extraction(models.SourceArchiveOrg, "Short", "clean"), MercuryPriority)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "Short", *patch.Title)
	require.NotNil(t, patch.Readable)
	require.NotNil(t, patch.ExtractionSource)
	assert.Equal(t, models.SourceArchiveOrg, *patch.ExtractionSource)
	require.NotNil(t, patch.Language)

	// Rich over rich only fills gaps.
	rich := direct
	rich.ExtractionSource = models.SourceTrafilatura
	patch = Merge(rich, extraction(models.SourceArchiveOrg, "Short", "clean"), MercuryPriority)
	assert.Nil(t, patch.Title)
	assert.Nil(t, patch.Readable)

	// A direct-only extraction never overrides.
	patch = Merge(direct, extraction(models.SourceHTTPDirect, "Short", "clean"), MercuryPriority)
	assert.True(t, patch.IsEmpty())
}

func TestMerge_SourceFollowsReadable(t *testing.T) {
	existing := models.Expression{Readable: "a long existing readable text", ExtractionSource: models.SourceTrafilatura, WordCount: 5}
	patch := Merge(existing, extraction(models.SourceHTTPDirect, "", "short"), SmartMerge)
	assert.Nil(t, patch.Readable)
	assert.Nil(t, patch.ExtractionSource)
	assert.Nil(t, patch.WordCount)
}

func TestMerge_FailedExtraction(t *testing.T) {
	failed := models.ExtractionResult{Success: false, Source: models.SourceError, ErrorCode: models.ErrCodeTimeout}

	patch := Merge(models.Expression{}, failed, SmartMerge)
	require.NotNil(t, patch.ExtractionSource)
	assert.Equal(t, models.SourceError, *patch.ExtractionSource)

	patch = Merge(models.Expression{Title: "kept", ExtractionSource: models.SourceTrafilatura}, failed, SmartMerge)
	assert.True(t, patch.IsEmpty())
}

func TestMarkEvaluated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var patch models.ExpressionPatch
	MarkEvaluated(&patch, models.Expression{}, models.ExtractionResult{Success: true, HTTPStatus: 200, Duration: 1500 * time.Millisecond}, now)
	require.NotNil(t, patch.ApprovedAt)
	require.NotNil(t, patch.CrawledAt)
	require.NotNil(t, patch.ReadableAt)
	assert.Equal(t, 200, *patch.HTTPStatus)
	assert.Equal(t, 1.5, *patch.ExtractionDuration)
	assert.Nil(t, patch.ExtractionError)

	patch = models.ExpressionPatch{}
	MarkEvaluated(&patch, models.Expression{}, models.ExtractionResult{Success: false, ErrorCode: "timeout", ErrorMessage: "deadline"}, now)
	require.NotNil(t, patch.ApprovedAt)
	assert.Nil(t, patch.CrawledAt)
	assert.Nil(t, patch.ReadableAt)
	assert.Nil(t, patch.HTTPStatus)
	require.NotNil(t, patch.ExtractionError)
	assert.Equal(t, "timeout: deadline", *patch.ExtractionError)
}
