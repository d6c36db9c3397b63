// ABOUTME: Translates fetch queries into article store reads scoped to the account's feeds
// ABOUTME: Complete unread and container fetches also correct the cached unread counts

package account

import (
	"context"
	"time"

	"github.com/harper/feedsync/internal/models"
	"github.com/harper/feedsync/internal/storage"
	"github.com/harper/feedsync/internal/timeutil"
	"github.com/harper/feedsync/internal/tree"
	"github.com/samber/lo"
)

// FetchArticles returns the articles selected by q.
func (a *Account) FetchArticles(ctx context.Context, q models.FetchQuery) ([]*models.Article, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := storage.ArticleFilter{Limit: q.Limit}
	scoped := true
	validate := false
	switch q.Kind {
	case models.QueryStarred:
		filter.FeedIDs = a.tree.FlattenedFeedIDs()
		filter.StarredOnly = true
	case models.QueryUnread:
		filter.FeedIDs = a.tree.FlattenedFeedIDs()
		filter.UnreadOnly = true
		validate = true
	case models.QueryToday:
		since := timeutil.StartOfDay(a.now())
		filter.FeedIDs = a.tree.FlattenedFeedIDs()
		filter.Since = &since
	case models.QueryInContainer:
		filter.FeedIDs = feedIDs(q.Container.FlattenedFeeds())
		filter.UnreadOnly = q.UnreadOnly
		validate = true
	case models.QueryForFeed:
		filter.FeedIDs = []string{q.Feed.ID}
		validate = true
	case models.QueryByArticleIDs:
		filter.ArticleIDs = q.ArticleIDs
		scoped = false
	case models.QuerySearch:
		filter.FeedIDs = a.tree.FlattenedFeedIDs()
		filter.Search = q.Text
	case models.QuerySearchWithinIDs:
		filter.ArticleIDs = q.ArticleIDs
		filter.Search = q.Text
		scoped = false
	}

	if scoped && len(filter.FeedIDs) == 0 {
		return nil, nil
	}
	if !scoped && len(filter.ArticleIDs) == 0 {
		return nil, nil
	}

	articles, err := a.store.FetchArticles(ctx, filter)
	if err != nil {
		return nil, err
	}
	if validate && q.IsUnlimited() {
		a.unread.ValidateFromArticles(filter.FeedIDs, articles)
	}
	return articles, nil
}

// FetchUnreadArticlesBetween returns unread articles dated in [since, until).
// A zero bound is open.
func (a *Account) FetchUnreadArticlesBetween(ctx context.Context, since, until time.Time) ([]*models.Article, error) {
	filter := storage.ArticleFilter{
		FeedIDs:    a.tree.FlattenedFeedIDs(),
		UnreadOnly: true,
	}
	if len(filter.FeedIDs) == 0 {
		return nil, nil
	}
	if !since.IsZero() {
		filter.Since = &since
	}
	if !until.IsZero() {
		filter.Until = &until
	}
	return a.store.FetchArticles(ctx, filter)
}

func feedIDs(feeds []*tree.Feed) []string {
	return lo.Map(feeds, func(f *tree.Feed, _ int) string { return f.ID })
}
