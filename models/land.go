package models

import "time"

// Land is a research project: a topic, its seed URLs and its weighted dictionary.
type Land struct {
	ID          int64     `db:"id" yaml:"id"`
	Name        string    `db:"name" yaml:"name"`
	Description string    `db:"description" yaml:"description,omitempty"`
	Languages   []string  `db:"-" yaml:"languages"`
	CrawlDepth  int       `db:"crawl_depth" yaml:"crawl_depth"`
	CrawlSize   int       `db:"crawl_size" yaml:"crawl_size"` // max expressions, 0 = unbounded
	StartURLs   []string  `db:"-" yaml:"start_urls,omitempty"`
	OwnerID     int64     `db:"owner_id" yaml:"owner_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" yaml:"created_at"`
}

// PrimaryLanguage returns the language used for lemmatization.
func (l *Land) PrimaryLanguage() string {
	if len(l.Languages) == 0 || l.Languages[0] == "" {
		return "en"
	}
	return l.Languages[0]
}

// Term is a dictionary word with its lemma.
type Term struct {
	ID       int64  `db:"id"`
	Word     string `db:"word"`
	Lemma    string `db:"lemma"`
	Language string `db:"language"`
}

// DictionaryEntry is a term as seen from one land, carrying that land's weight.
type DictionaryEntry struct {
	TermID int64   `db:"term_id" yaml:"-"`
	Word   string  `db:"word" yaml:"word"`
	Lemma  string  `db:"lemma" yaml:"lemma"`
	Weight float64 `db:"weight" yaml:"weight"`
}
