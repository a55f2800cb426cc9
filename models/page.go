package models

import (
	"fmt"
	"strings"
	"time"
)

// ReadableArticle is the boilerplate-free content of a single web page.
type ReadableArticle struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Keywords    string         `json:"keywords,omitempty"`
	Byline      string         `json:"byline,omitempty"`
	SiteName    string         `json:"site_name,omitempty"`
	Image       string         `json:"image,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Content     string         `json:"-"` // clean HTML
	Blocks      []ContentBlock `json:"content"`
}

// ContentBlock represents a semantic block of text on a page.
type ContentBlock struct {
	Type string `json:"type"` // e.g., "h1", "h2", "p", "li", "img", "pre"
	Text string `json:"text"`
	Src  string `json:"src,omitempty"` // media blocks
	Lang string `json:"lang,omitempty"`
}

// ToPlainText concatenates readable text from all content blocks.
func (a *ReadableArticle) ToPlainText() string {
	var sb strings.Builder

	for _, block := range a.Blocks {
		switch block.Type {
		case "img", "video", "audio":
			continue
		default:
			sb.WriteString(block.Text)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// ToMarkdown renders the blocks as Markdown. Media blocks keep their
// source URL so later passes can find them again.
func (a *ReadableArticle) ToMarkdown() string {
	var sb strings.Builder

	for _, block := range a.Blocks {
		switch block.Type {
		case "h1":
			fmt.Fprintf(&sb, "# %s\n\n", block.Text)
		case "h2":
			fmt.Fprintf(&sb, "## %s\n\n", block.Text)
		case "h3":
			fmt.Fprintf(&sb, "### %s\n\n", block.Text)
		case "h4":
			fmt.Fprintf(&sb, "#### %s\n\n", block.Text)
		case "li":
			fmt.Fprintf(&sb, "- %s\n", block.Text)
		case "pre":
			fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", block.Lang, block.Text)
		case "img":
			fmt.Fprintf(&sb, "![%s](%s)\n\n", block.Text, block.Src)
		case "video":
			fmt.Fprintf(&sb, "[VIDEO: %s]\n\n", block.Src)
		case "audio":
			fmt.Fprintf(&sb, "[AUDIO: %s]\n\n", block.Src)
		default:
			fmt.Fprintf(&sb, "%s\n\n", block.Text)
		}
	}

	return strings.TrimSpace(sb.String())
}

// WordCount counts words in the plain-text rendering.
func (a *ReadableArticle) WordCount() int {
	return len(strings.Fields(a.ToPlainText()))
}
