package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"punctuation", "Hello, World!", []string{"hello", "world"}},
		{"apostrophe", "l'Ukraine", []string{"l", "ukraine"}},
		{"digits kept", "covid-19 wave", []string{"covid", "19", "wave"}},
		{"empty", "   ", []string{}},
		{"stopwords kept", "No, the answer is non", []string{"no", "the", "answer", "is", "non"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "ete", Fold("été"))
	assert.Equal(t, "Francais", Fold("Français"))
	assert.Equal(t, "plain", Fold("plain"))
}

func TestLemma(t *testing.T) {
	assert.Equal(t, Lemma("wars", "en"), Lemma("war", "en"))
	assert.Equal(t, Lemma("running", "en"), Lemma("runs", "en"))
	assert.Equal(t, Lemma("guerres", "fr"), Lemma("guerre", "fr"))
	// No stemmer: surface form, folded.
	assert.Equal(t, "ete", Lemma("Été", "xx"))
	assert.Equal(t, "", Lemma("  ", "en"))
}

func TestLemmaPhrase(t *testing.T) {
	assert.Equal(t, Lemma("climate", "en")+" "+Lemma("change", "en"), LemmaPhrase("Climate  Change", "en"))
	assert.Equal(t, "cafe noir", SurfacePhrase("Café, noir"))
}

func TestWordFrequencyAndTopKeywords(t *testing.T) {
	freq := WordFrequency("The war and the peace. War again, war.")
	assert.Equal(t, 3, freq["war"])
	assert.NotContains(t, freq, "the")
	assert.NotContains(t, freq, "and")

	assert.Equal(t, []string{"war", "peace"}, TopKeywords(freq, 2))
	assert.Len(t, TopKeywords(freq, 50), len(freq))
}

func TestIsStopword(t *testing.T) {
	assert.True(t, IsStopword("the"))
	assert.True(t, IsStopword("les"))
	assert.False(t, IsStopword("ukraine"))
}

func TestDetector(t *testing.T) {
	d := NewDetector([]string{"fr", "en", "zz"})

	code, conf := d.Detect("La guerre en Ukraine continue de provoquer des destructions dans tout le pays.")
	assert.Equal(t, "fr", code)
	assert.Greater(t, conf, 0.0)

	code, _ = d.Detect("The war in Ukraine continues to cause destruction across the whole country.")
	assert.Equal(t, "en", code)

	code, _ = d.Detect("short")
	assert.Equal(t, "", code)

	var nilDetector *Detector
	code, _ = nilDetector.Detect("The war in Ukraine continues to cause destruction.")
	assert.Equal(t, "", code)
}
