// Package lexicon tokenizes text and reduces words to the lemma form used
// for dictionary matching.
package lexicon

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// snowballLanguages maps ISO-639-1 codes to the stemmers snowball ships.
var snowballLanguages = map[string]string{
	"en": "english",
	"fr": "french",
	"es": "spanish",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"nb": "norwegian",
	"hu": "hungarian",
}

// Tokenize splits text into lowercased word tokens. Any rune that is not a
// letter or a digit separates tokens, so "l'Ukraine" gives "l", "ukraine".
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Fold removes diacritics: "été" -> "ete".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Surface is the comparison form of a word as written.
func Surface(word string) string {
	return Fold(strings.ToLower(strings.TrimSpace(word)))
}

// Lemma returns the stem of word in lang, accent-folded. Languages without a
// stemmer fall back to the surface form.
func Lemma(word, lang string) string {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" {
		return ""
	}
	if name, ok := snowballLanguages[strings.ToLower(lang)]; ok {
		if stem, err := snowball.Stem(lower, name, true); err == nil && stem != "" {
			lower = stem
		}
	}
	return Fold(lower)
}

// LemmaPhrase lemmatizes every token of a multi-word term and joins them
// with single spaces.
func LemmaPhrase(phrase, lang string) string {
	tokens := Tokenize(phrase)
	for i, tok := range tokens {
		tokens[i] = Lemma(tok, lang)
	}
	return strings.Join(tokens, " ")
}

// SurfacePhrase is the accent-folded token form of a multi-word term.
func SurfacePhrase(phrase string) string {
	tokens := Tokenize(phrase)
	for i, tok := range tokens {
		tokens[i] = Fold(tok)
	}
	return strings.Join(tokens, " ")
}

// WordFrequency counts non-stopword tokens.
func WordFrequency(text string) map[string]int {
	frequencies := make(map[string]int)
	for _, word := range Tokenize(text) {
		if IsStopword(word) || len([]rune(word)) < 2 {
			continue
		}
		frequencies[word]++
	}
	return frequencies
}

// TopKeywords returns the n most frequent words, ties broken alphabetically.
func TopKeywords(counts map[string]int, n int) []string {
	type kv struct {
		Key   string
		Value int
	}

	ss := make([]kv, 0, len(counts))
	for k, v := range counts {
		ss = append(ss, kv{k, v})
	}
	sort.Slice(ss, func(i, j int) bool {
		if ss[i].Value != ss[j].Value {
			return ss[i].Value > ss[j].Value
		}
		return ss[i].Key < ss[j].Key
	})

	limit := n
	if len(ss) < n {
		limit = len(ss)
	}
	keywords := make([]string, limit)
	for i := 0; i < limit; i++ {
		keywords[i] = ss[i].Key
	}
	return keywords
}
