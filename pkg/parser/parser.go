package parser

import (
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

type Parser struct{}

// Parse uses go-readability to isolate the main article content and then
// walks that clean content into ordered blocks. Page-level metadata
// (description, keywords, dates) comes from the original document head.
func (p *Parser) Parse(rawURL, html string) (*models.ReadableArticle, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}

	rp := readability.NewParser()
	article, err := rp.Parse(strings.NewReader(html), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract readable content: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse readable HTML: %w", err)
	}

	meta := ParseMeta(html)
	out := &models.ReadableArticle{
		URL:         rawURL,
		Title:       normalizeText(article.Title),
		Description: meta.Description,
		Keywords:    meta.Keywords,
		Byline:      meta.Byline,
		SiteName:    meta.SiteName,
		Image:       urlnorm.Resolve(rawURL, meta.Image),
		PublishedAt: meta.PublishedAt,
		Content:     article.Content,
		Blocks:      extractBlocks(doc, rawURL),
	}
	if out.Title == "" {
		out.Title = meta.Title
	}
	return out, nil
}

func extractBlocks(doc *goquery.Document, baseURL string) []models.ContentBlock {
	var content []models.ContentBlock

	doc.Find("h1,h2,h3,h4,p,li,table,pre,img,video,audio").Each(func(i int, s *goquery.Selection) {
		tag := goquery.NodeName(s)

		switch tag {
		case "table":
			if text := extractTable(s); text != "" {
				content = append(content, models.ContentBlock{Type: "table", Text: text})
			}

		case "pre":
			if block, ok := extractCodeBlock(s); ok {
				content = append(content, block)
			}

		case "img":
			src := firstAttr(s, "src", "data-src")
			if resolved := urlnorm.Resolve(baseURL, src); resolved != "" {
				alt, _ := s.Attr("alt")
				content = append(content, models.ContentBlock{Type: "img", Src: resolved, Text: normalizeText(alt)})
			}

		case "video", "audio":
			src := firstAttr(s, "src")
			if src == "" {
				src = firstAttr(s.Find("source").First(), "src")
			}
			if resolved := urlnorm.Resolve(baseURL, src); resolved != "" {
				content = append(content, models.ContentBlock{Type: tag, Src: resolved})
			}

		default:
			text := normalizeText(s.Text())
			if text != "" {
				content = append(content, models.ContentBlock{Type: tag, Text: text})
			}
		}
	})

	return content
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// normalizeText cleans up a string by trimming space and removing excess newlines.
func normalizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			b.WriteString(line)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

// extractTable flattens a table into " | " separated rows.
func extractTable(s *goquery.Selection) string {
	var rows []string
	s.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(j int, cell *goquery.Selection) {
			cells = append(cells, normalizeText(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return strings.Join(rows, "\n")
}

func extractCodeBlock(s *goquery.Selection) (models.ContentBlock, bool) {
	codeSel := s.Find("code")
	if codeSel.Length() == 0 {
		codeSel = s
	}

	code := strings.TrimSpace(codeSel.Text())
	if code == "" {
		return models.ContentBlock{}, false
	}

	lang, _ := codeSel.Attr("class")
	lang = strings.TrimPrefix(lang, "language-")

	return models.ContentBlock{Type: "pre", Text: code, Lang: lang}, true
}
