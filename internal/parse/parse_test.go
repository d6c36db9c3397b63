// ABOUTME: Test suite for RSS/Atom feed parsing functionality
// ABOUTME: Validates conversion of RSS 2.0 and Atom feeds into parsed items using inline XML test data

package parse

import (
	"testing"
	"time"
)

const rss20XML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test RSS Feed</title>
    <link>https://example.com</link>
    <description>A test RSS feed</description>
    <item>
      <guid>https://example.com/post/1</guid>
      <title>First Post</title>
      <link>https://example.com/post/1</link>
      <author>john@example.com (John Doe)</author>
      <pubDate>Mon, 02 Jan 2006 15:04:05 MST</pubDate>
      <description>First post description</description>
      <category>tech</category>
      <category>golang</category>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/post/2</link>
      <pubDate>Tue, 03 Jan 2006 15:04:05 MST</pubDate>
      <description>Second post description</description>
    </item>
  </channel>
</rss>`

const atomXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2006-01-02T15:04:05Z</updated>
  <entry>
    <id>https://example.com/entry/1</id>
    <title>First Entry</title>
    <link href="https://example.com/entry/1"/>
    <author>
      <name>Jane Smith</name>
    </author>
    <published>2006-01-02T15:04:05Z</published>
    <updated>2006-01-02T16:04:05Z</updated>
    <content type="html">First entry content</content>
    <summary>First entry summary</summary>
    <category term="science"/>
  </entry>
  <entry>
    <id>https://example.com/entry/2</id>
    <title>Second Entry</title>
    <link href="https://example.com/entry/2"/>
    <updated>2006-01-03T15:04:05Z</updated>
    <summary>Second entry summary</summary>
  </entry>
</feed>`

func TestParse_RSS(t *testing.T) {
	feed, err := Parse([]byte(rss20XML), "https://example.com/rss")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if feed.Title != "Test RSS Feed" {
		t.Errorf("feed.Title = %q, want %q", feed.Title, "Test RSS Feed")
	}
	if feed.HomePageURL != "https://example.com" {
		t.Errorf("feed.HomePageURL = %q, want %q", feed.HomePageURL, "https://example.com")
	}
	if feed.FeedURL != "https://example.com/rss" {
		t.Errorf("feed.FeedURL = %q", feed.FeedURL)
	}

	if len(feed.Items) != 2 {
		t.Fatalf("len(feed.Items) = %d, want 2", len(feed.Items))
	}

	item1 := feed.Items[0]
	if item1.UniqueID != "https://example.com/post/1" {
		t.Errorf("item1.UniqueID = %q, want %q", item1.UniqueID, "https://example.com/post/1")
	}
	if item1.Title != "First Post" {
		t.Errorf("item1.Title = %q, want %q", item1.Title, "First Post")
	}
	if item1.URL != "https://example.com/post/1" {
		t.Errorf("item1.URL = %q, want %q", item1.URL, "https://example.com/post/1")
	}
	if item1.Author != "John Doe" {
		t.Errorf("item1.Author = %q, want %q", item1.Author, "John Doe")
	}
	if item1.DatePublished == nil {
		t.Error("item1.DatePublished is nil, want non-nil")
	}
	if item1.ContentHTML != "First post description" {
		t.Errorf("item1.ContentHTML = %q, want %q", item1.ContentHTML, "First post description")
	}
	if len(item1.Tags) != 2 || item1.Tags[0] != "tech" || item1.Tags[1] != "golang" {
		t.Errorf("item1.Tags = %v, want [tech golang]", item1.Tags)
	}

	// Second item has no GUID and falls back to its link
	item2 := feed.Items[1]
	if item2.UniqueID != "https://example.com/post/2" {
		t.Errorf("item2.UniqueID = %q, want %q (fallback to Link)", item2.UniqueID, "https://example.com/post/2")
	}
	if item2.Author != "" {
		t.Errorf("item2.Author = %q, want empty string", item2.Author)
	}
	if item1.ArticleID("feed") == item2.ArticleID("feed") {
		t.Error("distinct items must have distinct article IDs")
	}
}

func TestParse_Atom(t *testing.T) {
	feed, err := Parse([]byte(atomXML), "https://example.com/atom")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if feed.Title != "Test Atom Feed" {
		t.Errorf("feed.Title = %q, want %q", feed.Title, "Test Atom Feed")
	}
	if len(feed.Items) != 2 {
		t.Fatalf("len(feed.Items) = %d, want 2", len(feed.Items))
	}

	item1 := feed.Items[0]
	if item1.UniqueID != "https://example.com/entry/1" {
		t.Errorf("item1.UniqueID = %q", item1.UniqueID)
	}
	if item1.Author != "Jane Smith" {
		t.Errorf("item1.Author = %q, want %q", item1.Author, "Jane Smith")
	}
	expected := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	if item1.DatePublished == nil || !item1.DatePublished.Equal(expected) {
		t.Errorf("item1.DatePublished = %v, want %v", item1.DatePublished, expected)
	}
	if item1.DateModified == nil {
		t.Error("item1.DateModified is nil, want updated date")
	}
	if item1.ContentHTML != "First entry content" {
		t.Errorf("item1.ContentHTML = %q, want %q", item1.ContentHTML, "First entry content")
	}
	if item1.Summary != "First entry summary" {
		t.Errorf("item1.Summary = %q, want %q", item1.Summary, "First entry summary")
	}

	// Second item has no published date and uses updated
	item2 := feed.Items[1]
	expected = time.Date(2006, 1, 3, 15, 4, 5, 0, time.UTC)
	if item2.DatePublished == nil || !item2.DatePublished.Equal(expected) {
		t.Errorf("item2.DatePublished = %v, want %v", item2.DatePublished, expected)
	}
	if item2.ContentHTML != "Second entry summary" {
		t.Errorf("item2.ContentHTML = %q, want %q (fallback to summary)", item2.ContentHTML, "Second entry summary")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("<html><body>not a feed</body></html>"), ""); err == nil {
		t.Error("expected error for non-feed content")
	}
}

const linklessRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Status Updates</title>
    <item>
      <title>Deploy started</title>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
      <description>Rolling out build 12</description>
    </item>
    <item>
      <title>Deploy finished</title>
      <pubDate>Mon, 02 Jan 2006 16:04:05 GMT</pubDate>
      <description>Build 12 is live</description>
    </item>
  </channel>
</rss>`

func TestParse_ItemsWithoutGUIDOrLink(t *testing.T) {
	feed, err := Parse([]byte(linklessRSS), "https://status.example.com/feed")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(feed.Items))
	}

	first := feed.Items[0].ArticleID(feed.FeedURL)
	second := feed.Items[1].ArticleID(feed.FeedURL)
	if feed.Items[0].UniqueID == "" {
		t.Error("expected a derived unique ID")
	}
	if first == second {
		t.Errorf("items share article ID %q", first)
	}

	again, err := Parse([]byte(linklessRSS), "https://status.example.com/feed")
	if err != nil {
		t.Fatalf("Parse again: %v", err)
	}
	if got := again.Items[0].ArticleID(again.FeedURL); got != first {
		t.Errorf("article ID changed between parses: %q vs %q", got, first)
	}
}
