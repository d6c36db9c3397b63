// ABOUTME: ArticleStore interface consumed by accounts and backends
// ABOUTME: Defines the article filter used to translate fetch queries into store reads

package storage

import (
	"context"
	"time"

	"github.com/harper/feedsync/internal/models"
)

// StaleMergeCycles is how many consecutive merges an article may be missing
// from its feed before a read, unstarred article is deleted.
const StaleMergeCycles = 3

// ArticleFilter selects articles. Empty ID slices mean no restriction, so
// callers must not pass an empty FeedIDs to mean "no feeds".
type ArticleFilter struct {
	FeedIDs     []string
	ArticleIDs  []string
	UnreadOnly  bool
	StarredOnly bool
	Since       *time.Time
	Until       *time.Time
	Search      string
	Limit       int
}

// ArticleStore persists articles and their statuses for one account.
type ArticleStore interface {
	FetchArticles(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)

	// Merge upserts parsed items for one feed. New articles get an unread
	// status unless a status row already exists.
	Merge(ctx context.Context, feedID string, items []models.ParsedItem, deleteOlder bool) (models.ArticleChanges, error)

	// MergeMultiFeed upserts items for many feeds; missing status rows are
	// created with read set to defaultRead.
	MergeMultiFeed(ctx context.Context, feedItems map[string][]models.ParsedItem, defaultRead bool) (models.ArticleChanges, error)

	// MarkStatus sets a flag and returns the IDs whose value actually changed.
	// IDs without a status row are ignored.
	MarkStatus(ctx context.Context, articleIDs []string, key models.StatusKey, flag bool) ([]string, error)

	// CreateStatusesIfAbsent creates read, unstarred rows for unknown IDs and
	// returns the IDs it created. Existing rows are never touched.
	CreateStatusesIfAbsent(ctx context.Context, articleIDs []string) ([]string, error)

	Statuses(ctx context.Context, articleIDs []string) (map[string]models.ArticleStatus, error)
	ArticleIDsWithStatus(ctx context.Context, key models.StatusKey, flag bool) ([]string, error)
	FeedIDsForArticles(ctx context.Context, articleIDs []string) (map[string]string, error)

	UnreadCount(ctx context.Context, feedID string) (int, error)
	UnreadCounts(ctx context.Context, feedIDs []string) (map[string]int, error)
	AllUnreadCounts(ctx context.Context) (map[string]int, error)

	DeleteArticlesForFeeds(ctx context.Context, feedIDs []string) error
	Close() error
}
