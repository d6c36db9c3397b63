// ABOUTME: Feed node of an account's feed tree with its fetch metadata
// ABOUTME: Identity is the (account, feed) pair so feeds from different accounts never collide

package tree

import (
	"sync"
	"time"
)

// FeedKey identifies a feed across accounts.
type FeedKey struct {
	AccountID string
	FeedID    string
}

// ConditionalGet holds the validators from the last successful fetch.
type ConditionalGet struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"lastModified,omitempty"`
	Date         time.Time `json:"date"`
}

// Metadata is the mutable, persisted part of a feed.
type Metadata struct {
	Name           string          `json:"name,omitempty"`
	EditedName     string          `json:"editedName,omitempty"`
	HomePageURL    string          `json:"homePageURL,omitempty"`
	IconURL        string          `json:"iconURL,omitempty"`
	FaviconURL     string          `json:"faviconURL,omitempty"`
	ContentHash    string          `json:"contentHash,omitempty"`
	ConditionalGet *ConditionalGet `json:"conditionalGetInfo,omitempty"`
	LastCheck      *time.Time      `json:"lastCheckDate,omitempty"`
}

// Feed is a subscription owned by one account. AccountID is a non-owning
// reference; resolve it through the account registry.
type Feed struct {
	ID         string
	AccountID  string
	URL        string
	ExternalID string

	mu   sync.RWMutex
	meta Metadata
}

// NewFeed creates a feed. Local accounts use the URL as the feed ID.
func NewFeed(accountID, id, url string) *Feed {
	if id == "" {
		id = url
	}
	return &Feed{ID: id, AccountID: accountID, URL: url}
}

// Key returns the cross-account identity of the feed.
func (f *Feed) Key() FeedKey {
	return FeedKey{AccountID: f.AccountID, FeedID: f.ID}
}

// Equal reports whether two feeds have the same identity.
func (f *Feed) Equal(other *Feed) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.Key() == other.Key()
}

// Metadata returns a copy of the feed's metadata.
func (f *Feed) Metadata() Metadata {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m := f.meta
	if m.ConditionalGet != nil {
		cg := *m.ConditionalGet
		m.ConditionalGet = &cg
	}
	return m
}

// UpdateMetadata applies fn to the feed's metadata under its lock.
func (f *Feed) UpdateMetadata(fn func(m *Metadata)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.meta)
}

// NameForDisplay prefers the user's edited name over the feed's own name.
func (f *Feed) NameForDisplay() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.meta.EditedName != "" {
		return f.meta.EditedName
	}
	if f.meta.Name != "" {
		return f.meta.Name
	}
	return "Untitled"
}

// SetName records the name provided by the feed document.
func (f *Feed) SetName(name string) {
	f.UpdateMetadata(func(m *Metadata) { m.Name = name })
}

// SetEditedName records a user override. An empty name clears the override.
func (f *Feed) SetEditedName(name string) {
	f.UpdateMetadata(func(m *Metadata) { m.EditedName = name })
}

// FeedSet is a set of feeds keyed by full identity.
type FeedSet map[FeedKey]*Feed

// NewFeedSet builds a set from feeds.
func NewFeedSet(feeds ...*Feed) FeedSet {
	s := make(FeedSet, len(feeds))
	for _, f := range feeds {
		s.Add(f)
	}
	return s
}

// Add inserts f.
func (s FeedSet) Add(f *Feed) { s[f.Key()] = f }

// Contains reports whether f is a member.
func (s FeedSet) Contains(f *Feed) bool {
	_, ok := s[f.Key()]
	return ok
}

// IDs returns feed IDs of members.
func (s FeedSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for k := range s {
		ids = append(ids, k.FeedID)
	}
	return ids
}
