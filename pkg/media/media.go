// Package media finds embedded media and outbound links in extracted
// content, which may be HTML, Markdown or a mix of both.
package media

import (
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"svg": {}, "bmp": {}, "avif": {}, "tiff": {}, "ico": {},
}

var (
	bracketExpr = regexp.MustCompile(`\[(IMAGE|VIDEO|AUDIO):\s*([^\]\s]+)\s*\]`)
	htmlExpr    = regexp.MustCompile(`(?i)<(a|img|video|audio|source|p|div|html|body|article)[\s>]`)
)

var bracketTypes = map[string]string{
	"IMAGE": models.MediaImage,
	"VIDEO": models.MediaVideo,
	"AUDIO": models.MediaAudio,
}

type candidate struct {
	url       string
	mediaType string
}

// ExtractMedia returns the media referenced by content, resolved against
// baseURL. Candidates whose URL hash is in known, or that repeat within
// content, are skipped. Images must carry an allowed extension unless they
// are data URIs.
func ExtractMedia(content, baseURL string, known map[string]struct{}) []models.MediaFields {
	var candidates []candidate
	if looksLikeHTML(content) {
		candidates = append(candidates, htmlMedia(content)...)
	}
	candidates = append(candidates, markdownMedia(content)...)
	candidates = append(candidates, bracketMedia(content)...)

	seen := make(map[string]struct{}, len(candidates))
	var out []models.MediaFields
	for _, c := range candidates {
		resolved := urlnorm.Resolve(baseURL, c.url)
		if resolved == "" {
			continue
		}
		format := Format(resolved)
		if c.mediaType == models.MediaImage && !isDataURI(resolved) {
			if _, ok := imageExtensions[format]; !ok {
				continue
			}
		}

		hash := urlnorm.Hash(resolved)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		if _, persisted := known[hash]; persisted {
			continue
		}

		out = append(out, models.MediaFields{URL: resolved, Type: c.mediaType, Format: format})
	}
	return out
}

// Format returns the lowercased file extension of u, or the subtype of a
// data URI ("data:image/png;base64,..." -> "png").
func Format(u string) string {
	if isDataURI(u) {
		mime := strings.TrimPrefix(strings.SplitN(u, ";", 2)[0], "data:")
		mime = strings.SplitN(mime, ",", 2)[0]
		if i := strings.Index(mime, "/"); i >= 0 {
			return strings.ToLower(mime[i+1:])
		}
		return ""
	}
	p := u
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

func isDataURI(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "data:")
}

func looksLikeHTML(content string) bool {
	return htmlExpr.MatchString(content)
}

func htmlMedia(content string) []candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var out []candidate
	doc.Find("img, video, audio, video source, audio source").Each(func(i int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		mediaType := tag
		if tag == "source" {
			mediaType = goquery.NodeName(s.Parent())
		}
		if mediaType != models.MediaImage && mediaType != models.MediaVideo && mediaType != models.MediaAudio {
			return
		}
		for _, attr := range []string{"src", "data-src"} {
			if tag != "img" && attr == "data-src" {
				continue
			}
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				out = append(out, candidate{url: strings.TrimSpace(v), mediaType: mediaType})
			}
		}
	})
	return out
}

func markdownMedia(content string) []candidate {
	src := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []candidate
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			out = append(out, candidate{url: string(img.Destination), mediaType: models.MediaImage})
		}
		return ast.WalkContinue, nil
	})
	return out
}

func bracketMedia(content string) []candidate {
	var out []candidate
	for _, m := range bracketExpr.FindAllStringSubmatch(content, -1) {
		out = append(out, candidate{url: m[2], mediaType: bracketTypes[m[1]]})
	}
	return out
}
