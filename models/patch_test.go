package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpressionPatch_ApplyOnlyTouchesSetFields(t *testing.T) {
	e := Expression{Title: "old", Description: "kept", Relevance: 3}
	p := ExpressionPatch{Title: Ptr("new"), Relevance: Ptr(0.0)}
	p.Apply(&e)

	assert.Equal(t, "new", e.Title)
	assert.Equal(t, "kept", e.Description)
	assert.Equal(t, 0.0, e.Relevance)
}

func TestExpressionPatch_IsEmpty(t *testing.T) {
	assert.True(t, (&ExpressionPatch{}).IsEmpty())
	assert.False(t, (&ExpressionPatch{HTTPStatus: Ptr(200)}).IsEmpty())
}

func TestExpressionPatch_Validate(t *testing.T) {
	assert.NoError(t, (&ExpressionPatch{ExtractionSource: Ptr("archive_org")}).Validate())
	assert.Error(t, (&ExpressionPatch{ExtractionSource: Ptr("mercury")}).Validate())
	assert.Error(t, (&ExpressionPatch{Relevance: Ptr(-1.0)}).Validate())
	assert.Error(t, (&ExpressionPatch{QualityScore: Ptr(1.5)}).Validate())
}
