// ABOUTME: ArticleChanges reports what a merge created, updated, or deleted
// ABOUTME: Drives both change notifications and unread count recomputation

package models

import "sort"

// ArticleChanges holds disjoint sets of articles touched by a merge.
type ArticleChanges struct {
	New     []*Article
	Updated []*Article
	Deleted []*Article
}

// IsEmpty reports whether the merge touched nothing.
func (c ArticleChanges) IsEmpty() bool {
	return len(c.New) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// FeedIDs returns the sorted set of feeds owning any changed article.
func (c ArticleChanges) FeedIDs() []string {
	seen := make(map[string]struct{})
	for _, group := range [][]*Article{c.New, c.Updated, c.Deleted} {
		for _, a := range group {
			seen[a.FeedID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AffectsUnread reports whether the change can alter unread counts.
// Content updates alone never change a status.
func (c ArticleChanges) AffectsUnread() bool {
	return len(c.New) > 0 || len(c.Deleted) > 0
}

// Append merges other into c.
func (c *ArticleChanges) Append(other ArticleChanges) {
	c.New = append(c.New, other.New...)
	c.Updated = append(c.Updated, other.Updated...)
	c.Deleted = append(c.Deleted, other.Deleted...)
}

// ArticleIDs returns the IDs of the given articles in order.
func ArticleIDs(articles []*Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	return ids
}
