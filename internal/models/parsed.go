// ABOUTME: Parsed feed and item types produced by parsers and remote services
// ABOUTME: Items are converted to articles by the store during merge

package models

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// ParsedFeed is a feed document after parsing and before merge.
type ParsedFeed struct {
	Title       string
	HomePageURL string
	FeedURL     string
	IconURL     string
	FaviconURL  string
	Items       []ParsedItem
}

// ParsedItem is one item from a feed document or a sync service.
type ParsedItem struct {
	// SyncServiceID is the article ID assigned by a sync service, if any.
	SyncServiceID string
	UniqueID      string
	FeedURL       string
	URL           string
	ExternalURL   string
	Title         string
	ContentHTML   string
	ContentText   string
	Summary       string
	Author        string
	DatePublished *time.Time
	DateModified  *time.Time
	Tags          []string
}

// ArticleID returns the stable article ID for this item within feedID.
func (p ParsedItem) ArticleID(feedID string) string {
	if p.SyncServiceID != "" {
		return p.SyncServiceID
	}
	sum := md5.Sum([]byte(feedID + " " + p.UniqueID))
	return hex.EncodeToString(sum[:])
}

// Clone returns a copy of the feed with its own item slice.
func (f *ParsedFeed) Clone() *ParsedFeed {
	if f == nil {
		return nil
	}
	c := *f
	c.Items = make([]ParsedItem, len(f.Items))
	copy(c.Items, f.Items)
	return &c
}
