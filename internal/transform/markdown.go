// ABOUTME: Transformer that derives plain text content from HTML using html-to-markdown
// ABOUTME: Fills ContentText so search and terminal display work without HTML

package transform

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/harper/feedsync/internal/models"
)

// htmlTagPattern matches common HTML tags
var htmlTagPattern = regexp.MustCompile(`<\s*(p|div|span|a|br|img|iframe|h[1-6]|ul|ol|li|table|tr|td|th|strong|em|b|i|code|pre|blockquote)[^>]*>`)

// Markdown converts item HTML into markdown text.
type Markdown struct{}

// NewMarkdown creates the markdown transformer.
func NewMarkdown() *Markdown { return &Markdown{} }

func (*Markdown) Identifier() string                   { return "markdown" }
func (*Markdown) Priority() int                        { return 10 }
func (*Markdown) CanTransform(string) bool             { return true }
func (*Markdown) CorrectFeedURL(string) (string, bool) { return "", false }

// Transform fills ContentText for items that only carry HTML.
func (*Markdown) Transform(feed *models.ParsedFeed, _ string) *models.ParsedFeed {
	for i := range feed.Items {
		item := &feed.Items[i]
		if item.ContentText == "" && item.ContentHTML != "" {
			item.ContentText = ToMarkdown(item.ContentHTML)
		}
	}
	return feed
}

// IsHTML checks if content appears to be HTML
func IsHTML(content string) bool {
	if strings.Contains(content, "<!DOCTYPE") || strings.Contains(content, "<html") {
		return true
	}
	return htmlTagPattern.MatchString(content)
}

// ToMarkdown converts HTML content to Markdown. Content that is not HTML,
// or that fails to convert, is returned unchanged.
func ToMarkdown(content string) string {
	if content == "" || !IsHTML(content) {
		return content
	}
	markdown, err := htmltomarkdown.ConvertString(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(markdown)
}
