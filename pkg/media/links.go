package media

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

const (
	LinkInternal = "internal"
	LinkExternal = "external"
)

// Link is an outbound reference found in a page.
type Link struct {
	URL        string
	AnchorText string
	LinkType   string
	Rel        string
	Position   int
}

// Meta converts l to the attributes stored on an edge.
func (l Link) Meta() models.LinkMeta {
	return models.LinkMeta{AnchorText: l.AnchorText, LinkType: l.LinkType, Rel: l.Rel, Position: l.Position}
}

type rawLink struct {
	href   string
	anchor string
	rel    string
}

// ExtractLinks returns the distinct http(s) links in content, resolved
// against baseURL, in document order. Links back to baseURL are dropped.
func ExtractLinks(content, baseURL string) []Link {
	var raw []rawLink
	if looksLikeHTML(content) {
		raw = append(raw, htmlLinks(content)...)
	}
	raw = append(raw, markdownLinks(content)...)

	baseHost := bareHost(baseURL)
	seen := map[string]struct{}{urlnorm.Hash(baseURL): {}}

	var out []Link
	for _, r := range raw {
		resolved := urlnorm.Resolve(baseURL, r.href)
		if resolved == "" || isDataURI(resolved) {
			continue
		}
		hash := urlnorm.Hash(resolved)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		linkType := LinkExternal
		if baseHost != "" && bareHost(resolved) == baseHost {
			linkType = LinkInternal
		}
		out = append(out, Link{
			URL:        resolved,
			AnchorText: r.anchor,
			LinkType:   linkType,
			Rel:        r.rel,
			Position:   len(out),
		})
	}
	return out
}

func bareHost(u string) string {
	return strings.TrimPrefix(urlnorm.Host(u), "www.")
}

func htmlLinks(content string) []rawLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var out []rawLink
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		rel, _ := s.Attr("rel")
		out = append(out, rawLink{
			href:   href,
			anchor: strings.Join(strings.Fields(s.Text()), " "),
			rel:    strings.TrimSpace(rel),
		})
	})
	return out
}

func markdownLinks(content string) []rawLink {
	src := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []rawLink
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			out = append(out, rawLink{href: string(node.Destination), anchor: nodeText(node, src)})
		case *ast.AutoLink:
			if node.AutoLinkType == ast.AutoLinkURL {
				u := string(node.URL(src))
				out = append(out, rawLink{href: u, anchor: u})
			}
		}
		return ast.WalkContinue, nil
	})
	return out
}

// nodeText concatenates the text segments below n.
func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(src))
				if t.SoftLineBreak() {
					sb.WriteByte(' ')
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
