package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Meta is the document-level metadata found in an HTML head.
type Meta struct {
	Title       string
	Description string
	Keywords    string
	Byline      string
	SiteName    string
	Image       string
	Language    string
	PublishedAt *time.Time
}

var publishedSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="pubdate"]`,
	`meta[name="publish-date"]`,
	`meta[name="date"]`,
	`meta[name="dc.date"]`,
	`meta[itemprop="datePublished"]`,
}

// ParseMeta reads title, description, keywords and publication date from
// html, preferring explicit meta tags over Open Graph ones.
func ParseMeta(html string) Meta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Meta{}
	}
	return MetaFromDocument(doc)
}

// MetaFromDocument is ParseMeta for an already parsed document.
func MetaFromDocument(doc *goquery.Document) Meta {
	m := Meta{
		Title:       firstNonEmpty(normalizeText(doc.Find("title").First().Text()), metaContent(doc, `meta[property="og:title"]`)),
		Description: firstNonEmpty(metaContent(doc, `meta[name="description"]`), metaContent(doc, `meta[property="og:description"]`)),
		Keywords:    metaContent(doc, `meta[name="keywords"]`),
		Byline:      firstNonEmpty(metaContent(doc, `meta[name="author"]`), metaContent(doc, `meta[property="article:author"]`)),
		SiteName:    metaContent(doc, `meta[property="og:site_name"]`),
		Image:       metaContent(doc, `meta[property="og:image"]`),
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		m.Language = strings.ToLower(strings.SplitN(strings.TrimSpace(lang), "-", 2)[0])
	}

	for _, sel := range publishedSelectors {
		if t := parseDate(metaContent(doc, sel)); t != nil {
			m.PublishedAt = t
			break
		}
	}
	if m.PublishedAt == nil {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			m.PublishedAt = parseDate(dt)
		}
	}

	return m
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return normalizeText(v)
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
