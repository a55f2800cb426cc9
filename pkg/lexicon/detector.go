package lexicon

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// minDetectRunes is the shortest text we try to classify.
const minDetectRunes = 20

// Detector guesses the language of extracted text among a fixed set.
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector restricted to the given ISO-639-1 codes.
// Unknown codes are ignored; English and French are always included since
// lingua needs at least two candidates.
func NewDetector(codes []string) *Detector {
	seen := map[lingua.Language]struct{}{}
	var languages []lingua.Language
	add := func(code string) {
		lang := lingua.GetLanguageFromIsoCode639_1(lingua.GetIsoCode639_1FromValue(strings.ToUpper(code)))
		if lang == lingua.Unknown {
			return
		}
		if _, dup := seen[lang]; dup {
			return
		}
		seen[lang] = struct{}{}
		languages = append(languages, lang)
	}

	for _, code := range codes {
		add(code)
	}
	add("en")
	add("fr")

	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithMinimumRelativeDistance(0.1).
			Build(),
	}
}

// Detect returns the ISO-639-1 code (lowercase) and confidence of text, or
// "" when the text is too short or ambiguous.
func (d *Detector) Detect(text string) (string, float64) {
	if d == nil || len([]rune(strings.TrimSpace(text))) < minDetectRunes {
		return "", 0
	}
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", 0
	}
	confidence := d.detector.ComputeLanguageConfidence(text, lang)
	return strings.ToLower(lang.IsoCode639_1().String()), confidence
}
