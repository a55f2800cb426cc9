package llmgate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/lexicon"
	"github.com/dtnitsch/mywi/pkg/metrics"
)

const (
	DefaultMaxAttempts  = 3
	DefaultExcerptChars = 1000
	defaultTemperature  = 0.0
)

// Verdict is the outcome of one gate check. Checked is false when the model
// was not consulted or never answered; Relevant is then true.
type Verdict struct {
	Checked  bool
	Relevant bool
	Model    string
	Attempts int
	Err      error
}

// Gate decides relevance with a language model.
type Gate struct {
	Enabled        bool
	Provider       Provider
	Model          string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration // per attempt
	ExcerptChars   int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Ready reports whether the gate can consult a model at all.
func (g *Gate) Ready() bool {
	return g != nil && g.Enabled && g.Provider != nil && g.Model != ""
}

// Validate asks the model whether expr belongs in land. confirmed is the
// caller's explicit consent to send page content to an external service;
// without it the model is never called.
func (g *Gate) Validate(ctx context.Context, land models.Land, dict []models.DictionaryEntry, expr models.Expression, confirmed bool) Verdict {
	if !g.Ready() || !confirmed {
		return Verdict{Relevant: true}
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prompt := BuildPrompt(land, dict, expr, g.excerptChars())
	v := Verdict{Model: g.Model}

	var answer string
	op := func() error {
		v.Attempts++
		attemptCtx, cancel := g.attemptContext(ctx)
		defer cancel()

		c, err := g.Provider.Complete(attemptCtx, prompt, g.Model, defaultTemperature)
		if err != nil {
			if IsTransient(err) {
				logger.Warn("LLM attempt failed", "url", expr.URL, "attempt", v.Attempts, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		answer = c.Content
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(g.backOff(), ctx)); err != nil {
		logger.Warn("LLM validation unavailable, keeping expression", "url", expr.URL, "attempts", v.Attempts, "error", err)
		g.Metrics.ObserveVerdict("failed")
		v.Relevant = true
		v.Err = fmt.Errorf("llm validation failed after %d attempts: %w", v.Attempts, err)
		return v
	}

	v.Checked = true
	v.Relevant = ParseAnswer(answer)
	if v.Relevant {
		g.Metrics.ObserveVerdict("relevant")
	} else {
		g.Metrics.ObserveVerdict("irrelevant")
	}
	logger.Debug("LLM verdict", "url", expr.URL, "relevant", v.Relevant, "attempts", v.Attempts)
	return v
}

func (g *Gate) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.InitialBackoff
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.MaxInterval = g.MaxBackoff
	if b.MaxInterval <= 0 {
		b.MaxInterval = 8 * time.Second
	}
	b.MaxElapsedTime = 0

	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	return backoff.WithMaxRetries(b, uint64(attempts-1))
}

func (g *Gate) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.Timeout > 0 {
		return context.WithTimeout(ctx, g.Timeout)
	}
	return context.WithCancel(ctx)
}

func (g *Gate) excerptChars() int {
	if g.ExcerptChars > 0 {
		return g.ExcerptChars
	}
	return DefaultExcerptChars
}

const promptTemplate = `Dans le cadre de la constitution d'un corpus de pages Web à des fins d'analyse de contenu, nous voulons savoir si la page ci-dessous est pertinente pour le projet de recherche décrit.

Projet : %s
Description du projet : %s
Mots-clés du projet : %s

Page à évaluer :
URL : %s
Titre : %s
Description : %s
Extrait du contenu :
%s

Cette page est-elle pertinente pour le projet ? Réponds uniquement par "oui" ou "non".`

// BuildPrompt renders the fixed relevance question for expr. The readable
// text is cut to excerptChars runes.
func BuildPrompt(land models.Land, dict []models.DictionaryEntry, expr models.Expression, excerptChars int) string {
	words := make([]string, 0, len(dict))
	for _, e := range dict {
		words = append(words, e.Word)
	}

	body := expr.Readable
	if body == "" {
		body = expr.Content
	}
	return fmt.Sprintf(promptTemplate,
		land.Name, land.Description, strings.Join(words, ", "),
		expr.URL, expr.Title, expr.Description, truncateRunes(strings.TrimSpace(body), excerptChars))
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ParseAnswer reads a oui/non answer. Only an unambiguous yes (oui or yes
// without any no or non) counts as relevant.
func ParseAnswer(answer string) bool {
	var yes, no bool
	for _, tok := range lexicon.Tokenize(answer) {
		switch tok {
		case "oui", "yes":
			yes = true
		case "non", "no":
			no = true
		}
	}
	return yes && !no
}
