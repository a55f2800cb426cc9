package llmgate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/mywi/models"
)

type scriptedProvider struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	answers []string
	errs    []error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, prompt, _ string, _ float64) (Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	p.prompts = append(p.prompts, prompt)
	if i < len(p.errs) && p.errs[i] != nil {
		return Completion{}, p.errs[i]
	}
	if i < len(p.answers) {
		return Completion{Content: p.answers[i]}, nil
	}
	return Completion{Content: "non"}, nil
}

func testGate(p Provider) *Gate {
	return &Gate{
		Enabled:        true,
		Provider:       p,
		Model:          "test-model",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

var (
	testLand = models.Land{Name: "ukraine", Description: "Guerre en Ukraine"}
	testDict = []models.DictionaryEntry{{Word: "ukraine"}, {Word: "guerre"}}
	testExpr = models.Expression{URL: "https://example.com/a", Title: "Kyiv", Readable: strings.Repeat("é", 1500)}
)

func TestParseAnswer(t *testing.T) {
	tests := map[string]bool{
		"oui":                  true,
		"Oui.":                 true,
		"YES":                  true,
		"non":                  false,
		"No, it is not.":       false,
		"oui et non":           false,
		"je ne sais pas":       false,
		"":                     false,
		"Réponse : oui":        true,
		"nonsense about knows": false,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseAnswer(in), in)
	}
}

func TestValidate_NotConsultedWithoutConsent(t *testing.T) {
	p := &scriptedProvider{answers: []string{"non"}}
	g := testGate(p)

	v := g.Validate(context.Background(), testLand, testDict, testExpr, false)
	assert.False(t, v.Checked)
	assert.True(t, v.Relevant)
	assert.Equal(t, 0, p.calls)

	g.Enabled = false
	v = g.Validate(context.Background(), testLand, testDict, testExpr, true)
	assert.False(t, v.Checked)
	assert.Equal(t, 0, p.calls)

	var nilGate *Gate
	assert.True(t, nilGate.Validate(context.Background(), testLand, testDict, testExpr, true).Relevant)
}

func TestValidate_Verdicts(t *testing.T) {
	p := &scriptedProvider{answers: []string{"Non."}}
	v := testGate(p).Validate(context.Background(), testLand, testDict, testExpr, true)
	assert.True(t, v.Checked)
	assert.False(t, v.Relevant)
	assert.Equal(t, "test-model", v.Model)
	assert.Equal(t, 1, v.Attempts)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "ukraine, guerre")
	assert.Contains(t, p.prompts[0], "https://example.com/a")
	assert.Contains(t, p.prompts[0], strings.Repeat("é", 1000))
	assert.NotContains(t, p.prompts[0], strings.Repeat("é", 1001))
}

func TestValidate_RetriesTransientThenSucceeds(t *testing.T) {
	p := &scriptedProvider{
		errs:    []error{&TransientError{StatusCode: 429, Err: errors.New("slow down")}},
		answers: []string{"", "oui"},
	}
	v := testGate(p).Validate(context.Background(), testLand, testDict, testExpr, true)
	assert.True(t, v.Checked)
	assert.True(t, v.Relevant)
	assert.Equal(t, 2, v.Attempts)
}

func TestValidate_AllTimeoutsFailOpen(t *testing.T) {
	timeout := &TransientError{Err: context.DeadlineExceeded}
	p := &scriptedProvider{errs: []error{timeout, timeout, timeout, timeout}}

	v := testGate(p).Validate(context.Background(), testLand, testDict, testExpr, true)
	assert.False(t, v.Checked)
	assert.True(t, v.Relevant)
	assert.Equal(t, 3, v.Attempts)
	assert.Equal(t, 3, p.calls)
	assert.ErrorIs(t, v.Err, context.DeadlineExceeded)
}

func TestValidate_PermanentErrorStopsRetrying(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("bad request")}}
	v := testGate(p).Validate(context.Background(), testLand, testDict, testExpr, true)
	assert.False(t, v.Checked)
	assert.True(t, v.Relevant)
	assert.Equal(t, 1, p.calls)
	assert.Error(t, v.Err)
}
