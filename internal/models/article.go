// ABOUTME: Article and per-article status types shared by the store, accounts, and backends
// ABOUTME: Status rows may exist before their article is downloaded from a sync service

package models

import (
	"fmt"
	"time"
)

// StatusKey names a boolean article status.
type StatusKey string

const (
	StatusRead    StatusKey = "read"
	StatusStarred StatusKey = "starred"
)

// ParseStatusKey converts user input into a StatusKey.
func ParseStatusKey(s string) (StatusKey, error) {
	switch StatusKey(s) {
	case StatusRead, StatusStarred:
		return StatusKey(s), nil
	default:
		return "", fmt.Errorf("unknown status key: %q", s)
	}
}

// ArticleStatus holds the read and starred flags for one article ID.
type ArticleStatus struct {
	ArticleID   string
	Read        bool
	Starred     bool
	DateArrived time.Time
}

// NewArticleStatus returns the status row used for IDs we have never seen.
// New rows default to read so that bulk creation never produces phantom unread counts.
func NewArticleStatus(articleID string) ArticleStatus {
	return ArticleStatus{
		ArticleID:   articleID,
		Read:        true,
		DateArrived: time.Now(),
	}
}

// Bool returns the value of the given status flag.
func (s ArticleStatus) Bool(key StatusKey) bool {
	switch key {
	case StatusRead:
		return s.Read
	case StatusStarred:
		return s.Starred
	}
	return false
}

// Set updates the flag and reports whether it changed.
func (s *ArticleStatus) Set(key StatusKey, flag bool) bool {
	if s.Bool(key) == flag {
		return false
	}
	switch key {
	case StatusRead:
		s.Read = flag
	case StatusStarred:
		s.Starred = flag
	}
	return true
}

// Article is a stored article joined with its status.
type Article struct {
	ID            string
	AccountID     string
	FeedID        string
	UniqueID      string
	Title         string
	ContentHTML   string
	ContentText   string
	URL           string
	ExternalURL   string
	Summary       string
	Author        string
	DatePublished *time.Time
	DateModified  *time.Time
	Status        ArticleStatus
}

// Date returns the best date for sorting: published, then modified, then arrival.
func (a *Article) Date() time.Time {
	if a.DatePublished != nil {
		return *a.DatePublished
	}
	if a.DateModified != nil {
		return *a.DateModified
	}
	return a.Status.DateArrived
}

// IsUnread reports whether the article counts toward unread totals.
func (a *Article) IsUnread() bool {
	return !a.Status.Read
}
