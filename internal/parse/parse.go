// ABOUTME: RSS/Atom/JSON feed parsing using gofeed library
// ABOUTME: Converts gofeed.Feed to the ParsedFeed model consumed by the transformer pipeline and merge

package parse

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/harper/feedsync/internal/models"
	"github.com/mmcdole/gofeed"
)

// Parse parses feed data fetched from feedURL.
func Parse(data []byte, feedURL string) (*models.ParsedFeed, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(data))
	if err != nil {
		return nil, err
	}

	parsed := &models.ParsedFeed{
		Title:       strings.TrimSpace(feed.Title),
		HomePageURL: feed.Link,
		FeedURL:     feedURL,
		Items:       make([]models.ParsedItem, 0, len(feed.Items)),
	}
	if feed.Image != nil {
		parsed.IconURL = feed.Image.URL
	}

	for _, item := range feed.Items {
		parsed.Items = append(parsed.Items, convertItem(item, feedURL))
	}
	return parsed, nil
}

func convertItem(item *gofeed.Item, feedURL string) models.ParsedItem {
	entry := models.ParsedItem{
		UniqueID:      item.GUID,
		FeedURL:       feedURL,
		URL:           item.Link,
		Title:         strings.TrimSpace(item.Title),
		DatePublished: item.PublishedParsed,
		DateModified:  item.UpdatedParsed,
		Tags:          item.Categories,
	}

	// Fallback GUID to Link if empty
	if entry.UniqueID == "" {
		entry.UniqueID = item.Link
	}
	if entry.DatePublished == nil {
		entry.DatePublished = item.UpdatedParsed
	}
	if item.Author != nil {
		entry.Author = item.Author.Name
	}
	for _, link := range item.Links {
		if link != "" && link != item.Link {
			entry.ExternalURL = link
			break
		}
	}

	// Prefer Content over Description; keep Description as the summary
	if item.Content != "" {
		entry.ContentHTML = strings.TrimSpace(item.Content)
		entry.Summary = strings.TrimSpace(item.Description)
	} else {
		entry.ContentHTML = strings.TrimSpace(item.Description)
	}
	if entry.UniqueID == "" {
		entry.UniqueID = derivedUniqueID(entry)
	}
	return entry
}

// derivedUniqueID hashes the stable fields of an item that has neither a
// GUID nor a link.
func derivedUniqueID(entry models.ParsedItem) string {
	var b strings.Builder
	b.WriteString(entry.Title)
	b.WriteString("\n")
	if entry.ContentHTML != "" {
		b.WriteString(entry.ContentHTML)
	} else {
		b.WriteString(entry.Summary)
	}
	b.WriteString("\n")
	if entry.DatePublished != nil {
		b.WriteString(entry.DatePublished.UTC().Format(time.RFC3339))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
