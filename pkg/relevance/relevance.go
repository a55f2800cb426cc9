// Package relevance scores extracted text against a land's weighted term
// dictionary.
package relevance

import (
	"strings"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/lexicon"
)

// DefaultTitleWeight multiplies every match found in the title.
const DefaultTitleWeight = 10.0

// Scorer computes relevance. Language selects the stemmer used to reduce
// page tokens; it should be the land's primary language.
type Scorer struct {
	TitleWeight float64
	Language    string
}

// NewScorer returns a scorer for lang. A titleWeight below 1 selects the
// default.
func NewScorer(titleWeight float64, lang string) Scorer {
	if titleWeight < 1 {
		titleWeight = DefaultTitleWeight
	}
	return Scorer{TitleWeight: titleWeight, Language: lang}
}

type matcher struct {
	surface []string
	lemma   []string
	weight  float64
}

type tokenized struct {
	surface []string
	lemma   []string
}

// Compute sums the weight of every dictionary hit, once per occurrence.
// Hits in the title count TitleWeight times. The result is never negative.
func (s Scorer) Compute(title, body string, entries []models.DictionaryEntry) float64 {
	matchers := s.compile(entries)
	if len(matchers) == 0 {
		return 0
	}

	weight := s.TitleWeight
	if weight < 1 {
		weight = DefaultTitleWeight
	}

	score := weight*s.count(title, matchers) + s.count(body, matchers)
	if score < 0 {
		return 0
	}
	return score
}

func (s Scorer) compile(entries []models.DictionaryEntry) []matcher {
	matchers := make([]matcher, 0, len(entries))
	for _, e := range entries {
		surface := strings.Fields(lexicon.SurfacePhrase(e.Word))
		if len(surface) == 0 {
			continue
		}
		lemma := strings.Fields(e.Lemma)
		if len(lemma) != len(surface) {
			lemma = strings.Fields(lexicon.LemmaPhrase(e.Word, s.Language))
		}
		matchers = append(matchers, matcher{surface: surface, lemma: lemma, weight: e.Weight})
	}
	return matchers
}

func (s Scorer) tokenize(text string) tokenized {
	tokens := lexicon.Tokenize(text)
	out := tokenized{
		surface: make([]string, len(tokens)),
		lemma:   make([]string, len(tokens)),
	}
	for i, tok := range tokens {
		out.surface[i] = lexicon.Fold(tok)
		out.lemma[i] = lexicon.Lemma(tok, s.Language)
	}
	return out
}

func (s Scorer) count(text string, matchers []matcher) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	toks := s.tokenize(text)

	var total float64
	for _, m := range matchers {
		n := len(m.surface)
		for i := 0; i+n <= len(toks.surface); i++ {
			if sequenceEqual(toks.surface[i:i+n], m.surface) || sequenceEqual(toks.lemma[i:i+n], m.lemma) {
				total += m.weight
			}
		}
	}
	return total
}

func sequenceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
